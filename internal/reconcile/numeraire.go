package reconcile

import "strings"

// Numéraire token addresses per network.
const (
	MainnetNumeraire = "0x967da4048cd07ab37855c090aaf366e4ce1b9f48"
	TestnetNumeraire = "0x8967bcf84170c91b0d24d4302c2376283b0b3a07"

	DefaultNumeraireSymbol = "OCEAN"
)

// NumeraireFor returns the numéraire address used on a network.
func NumeraireFor(network string) string {
	if strings.EqualFold(strings.TrimSpace(network), "mainnet") {
		return MainnetNumeraire
	}
	return TestnetNumeraire
}
