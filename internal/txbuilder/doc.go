package txbuilder

// Usage example (not compiled):
//
//  enc := txbuilder.NewTokenEncoder(quoter)
//  b := txbuilder.NewBuilder(chainID, enc)
//
//  t := txbuilder.NewTransfer(txbuilder.TokenAsset(usdc), from, to, amount)
//  utx, err := b.Build(t, nonce, txbuilder.LegacyPricing{GasPrice: price}, gasLimit)
//  if err != nil { ... }
//  signed, err := signer.SignTransaction(utx.From, utx.Transaction(), utx.ChainID)
//
