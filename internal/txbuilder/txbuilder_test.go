package txbuilder

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	testSender   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testReceiver = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testToken    = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func oneEther() *big.Int {
	v, _ := new(big.Int).SetString("1000000000000000000", 10)
	return v
}

func TestBuildNativeTransfer(t *testing.T) {
	b := NewBuilder(big.NewInt(1), nil)
	tr := NewTransfer(NativeAsset(), testSender, testReceiver, oneEther())

	utx, err := b.Build(tr, 3, LegacyPricing{GasPrice: big.NewInt(20_000_000_000)}, big.NewInt(21000))
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if utx.To != testReceiver {
		t.Fatalf("unexpected to: %s", utx.To.Hex())
	}
	if utx.Value.Cmp(oneEther()) != 0 {
		t.Fatalf("unexpected value: %s", utx.Value)
	}
	if utx.Data != nil {
		t.Fatalf("native transfer must carry no data, got %x", utx.Data)
	}
	if utx.From != testSender || utx.Nonce != 3 || utx.GasLimit != 21000 {
		t.Fatalf("unexpected tx fields: %+v", utx)
	}
}

func TestBuildTokenTransfer(t *testing.T) {
	b := NewBuilder(big.NewInt(1), nil)
	amount := big.NewInt(5_000_000)
	tr := NewTransfer(TokenAsset(testToken), testSender, testReceiver, amount)

	utx, err := b.Build(tr, 0, LegacyPricing{GasPrice: big.NewInt(20_000_000_000)}, big.NewInt(55000))
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if utx.To != testToken {
		t.Fatalf("token transfer must target the contract, got %s", utx.To.Hex())
	}
	if utx.Value.Sign() != 0 {
		t.Fatalf("token transfer must carry zero value, got %s", utx.Value)
	}
	expected := "0xa9059cbb" + hexAddress(testReceiver) + hex32(amount)
	if got := hexutil.Encode(utx.Data); got != expected {
		t.Fatalf("unexpected calldata\nexpected=%s\nactual=%s", expected, got)
	}
}

func TestTransferSelector(t *testing.T) {
	if got := hexutil.Encode(TransferSelector()); got != "0xa9059cbb" {
		t.Fatalf("unexpected selector: %s", got)
	}
}

func TestBuildTokenTransferMalformedRecipient(t *testing.T) {
	b := NewBuilder(big.NewInt(1), nil)
	tr := Transfer{
		Asset:    TokenAsset(testToken),
		Sender:   testSender.Bytes(),
		Receiver: []byte{0x01, 0x02},
		Amount:   big.NewInt(1),
	}
	_, err := b.Build(tr, 0, LegacyPricing{GasPrice: big.NewInt(1)}, big.NewInt(55000))
	var encErr *EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("expected EncodingError, got %v", err)
	}
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress in chain, got %v", err)
	}
}

func TestEncodeTransferRejectsOversizedAmount(t *testing.T) {
	enc := NewTokenEncoder(nil)
	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	_, err := enc.EncodeTransfer(testReceiver.Bytes(), tooBig)
	var encErr *EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("expected EncodingError, got %v", err)
	}
}

func TestBuildUnknownAsset(t *testing.T) {
	b := NewBuilder(big.NewInt(1), nil)
	tr := Transfer{Sender: testSender.Bytes(), Receiver: testReceiver.Bytes(), Amount: big.NewInt(1)}
	if _, err := b.Build(tr, 0, LegacyPricing{GasPrice: big.NewInt(1)}, big.NewInt(21000)); !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("expected ErrUnknownAsset, got %v", err)
	}
}

func TestLegacyPricingDuplicatesIntoAllFields(t *testing.T) {
	b := NewBuilder(big.NewInt(8453), nil)
	price := big.NewInt(20_000_000_000)
	tr := NewTransfer(NativeAsset(), testSender, testReceiver, big.NewInt(1))

	utx, err := b.Build(tr, 9, LegacyPricing{GasPrice: price}, big.NewInt(21000))
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	fees := utx.Fees()
	for name, v := range map[string]*big.Int{
		"gasPrice":             fees.GasPrice,
		"maxFeePerGas":         fees.MaxFeePerGas,
		"maxPriorityFeePerGas": fees.MaxPriorityFeePerGas,
	} {
		if v.Cmp(price) != 0 {
			t.Fatalf("%s = %s, want %s", name, v, price)
		}
	}

	tx := utx.Transaction()
	if tx.Type() != types.DynamicFeeTxType {
		t.Fatalf("unexpected tx type: %d", tx.Type())
	}
	if tx.GasFeeCap().Cmp(price) != 0 || tx.GasTipCap().Cmp(price) != 0 {
		t.Fatalf("unexpected caps: fee=%s tip=%s", tx.GasFeeCap(), tx.GasTipCap())
	}
	if tx.ChainId().Int64() != 8453 || tx.Nonce() != 9 || tx.Gas() != 21000 {
		t.Fatalf("unexpected envelope: chain=%s nonce=%d gas=%d", tx.ChainId(), tx.Nonce(), tx.Gas())
	}
}

func TestWireFormCarriesThreeGasFields(t *testing.T) {
	b := NewBuilder(big.NewInt(1), nil)
	tr := NewTransfer(NativeAsset(), testSender, testReceiver, big.NewInt(1))
	utx, err := b.Build(tr, 1, LegacyPricing{GasPrice: big.NewInt(16)}, big.NewInt(21000))
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	b2, err := json.Marshal(utx)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	var wire map[string]interface{}
	if err := json.Unmarshal(b2, &wire); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if wire["type"] != "0x2" {
		t.Fatalf("unexpected type: %v", wire["type"])
	}
	for _, k := range []string{"gasPrice", "maxFeePerGas", "maxPriorityFeePerGas"} {
		if wire[k] != "0x10" {
			t.Fatalf("%s = %v, want 0x10", k, wire[k])
		}
	}
	if _, ok := wire["data"]; ok {
		t.Fatalf("native transfer must not carry data on the wire")
	}
}

func TestDynamicPricing(t *testing.T) {
	b := NewBuilder(big.NewInt(1), nil)
	tr := NewTransfer(NativeAsset(), testSender, testReceiver, big.NewInt(1))
	pricing := NewDynamicPricing(big.NewInt(10_000_000_000), big.NewInt(2_000_000_000))

	utx, err := b.Build(tr, 0, pricing, big.NewInt(21000))
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	fees := utx.Fees()
	if fees.MaxFeePerGas.String() != "12000000000" || fees.MaxPriorityFeePerGas.String() != "2000000000" {
		t.Fatalf("unexpected fees: %+v", fees)
	}
}

func TestDynamicPricingRejectsCapBelowTip(t *testing.T) {
	b := NewBuilder(big.NewInt(1), nil)
	tr := NewTransfer(NativeAsset(), testSender, testReceiver, big.NewInt(1))
	pricing := DynamicPricing{MaxFeePerGas: big.NewInt(1), MaxPriorityFeePerGas: big.NewInt(2)}

	if _, err := b.Build(tr, 0, pricing, big.NewInt(21000)); !errors.Is(err, ErrFeeCapBelowTip) {
		t.Fatalf("expected ErrFeeCapBelowTip, got %v", err)
	}
}

func TestAssembleRejectsOversizedGasLimit(t *testing.T) {
	b := NewBuilder(big.NewInt(1), nil)
	c := Call{From: testSender, To: testReceiver, Value: big.NewInt(0)}
	limit := new(big.Int).Lsh(big.NewInt(1), 64)
	if _, err := b.Assemble(c, 0, LegacyPricing{GasPrice: big.NewInt(1)}, limit); err == nil {
		t.Fatalf("expected gas limit overflow error")
	}
}

type staticEstimator struct {
	gas      *big.Int
	contract common.Address
	data     []byte
}

func (s *staticEstimator) EstimateGasForInvocation(_ context.Context, _ common.Address, contract common.Address, _ *big.Int, data []byte) (*big.Int, error) {
	s.contract = contract
	s.data = data
	return s.gas, nil
}

func TestTokenEncoderEstimateGasDelegates(t *testing.T) {
	est := &staticEstimator{gas: big.NewInt(55000)}
	enc := NewTokenEncoder(est)
	data, err := enc.EncodeTransfer(testReceiver.Bytes(), big.NewInt(10))
	if err != nil {
		t.Fatalf("EncodeTransfer error: %v", err)
	}
	gas, err := enc.EstimateGas(context.Background(), testSender, testToken, nil, data)
	if err != nil {
		t.Fatalf("EstimateGas error: %v", err)
	}
	if gas.Int64() != 55000 || est.contract != testToken || !strings.HasPrefix(hexutil.Encode(est.data), "0xa9059cbb") {
		t.Fatalf("unexpected delegation: gas=%s contract=%s", gas, est.contract.Hex())
	}
}

type staticReader struct {
	out []byte
}

func (r staticReader) Call(context.Context, common.Address, []byte) ([]byte, error) {
	return r.out, nil
}

func TestDecimals(t *testing.T) {
	enc := NewTokenEncoder(nil)
	d, err := enc.Decimals(context.Background(), staticReader{out: common.LeftPadBytes([]byte{6}, 32)}, testToken)
	if err != nil {
		t.Fatalf("Decimals error: %v", err)
	}
	if d != 6 {
		t.Fatalf("unexpected decimals: %d", d)
	}
}

func TestParseUnits(t *testing.T) {
	v, err := ParseUnits("1.23", 6)
	if err != nil {
		t.Fatalf("ParseUnits error: %v", err)
	}
	if v.String() != "1230000" {
		t.Fatalf("unexpected value: %s", v.String())
	}

	v, err = ParseUnits("0.000001", 6)
	if err != nil {
		t.Fatalf("ParseUnits error: %v", err)
	}
	if v.String() != "1" {
		t.Fatalf("unexpected value: %s", v.String())
	}

	if _, err := ParseUnits("0.0000001", 6); err == nil {
		t.Fatalf("expected precision error")
	}
	if _, err := ParseUnits("-1", 18); err == nil {
		t.Fatalf("expected sign error")
	}
}

func TestFormatUnits(t *testing.T) {
	if got := FormatUnits(big.NewInt(420_000_000_000_000), 18); got != "0.00042" {
		t.Fatalf("unexpected format: %s", got)
	}
}

func TestParseQuantity(t *testing.T) {
	v, err := ParseQuantity("0x0a")
	if err != nil || v.Int64() != 10 {
		t.Fatalf("unexpected hex parse: %v %v", v, err)
	}
	v, err = ParseQuantity("21000")
	if err != nil || v.Int64() != 21000 {
		t.Fatalf("unexpected decimal parse: %v %v", v, err)
	}
}

func hex32(v *big.Int) string {
	b := common.LeftPadBytes(v.Bytes(), 32)
	return hexutil.Encode(b)[2:]
}

func hexAddress(addr common.Address) string {
	b := common.LeftPadBytes(addr.Bytes(), 32)
	return hexutil.Encode(b)[2:]
}
