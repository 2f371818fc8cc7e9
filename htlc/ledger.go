package htlc

// TokenLedger is the bridged token's custody surface on one chain. The bridge
// uses an escrow model: InitiateSwap moves funds from the sender into the
// bridge escrow account, Withdraw/Refund/CompleteSwap release from it.
// A mint-and-burn deployment only needs to swap the implementation behind
// this interface (Mint instead of pre-funded escrow).
type TokenLedger interface {
	// Transfer fails with ErrInsufficientFunds when from cannot cover amount.
	Transfer(from, to []byte, amount uint64) error

	// Mint creates amount out of thin air for to. Escrow deployments may
	// return an error here; the machine never calls it on its own.
	Mint(to []byte, amount uint64) error

	BalanceOf(addr []byte) uint64
}
