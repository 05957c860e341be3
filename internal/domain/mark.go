package domain

// MarkSnapshot is the latest venue mark (mid) price for an asset.
type MarkSnapshot struct {
	Asset       string  `json:"asset"`
	Mid         float64 `json:"mid"`
	UpdatedUnix int64   `json:"updated_unix"`
}

// SupportedAssets lists the perp instruments the desk tracks.
var SupportedAssets = []string{
	"BTC", "ETH", "SOL", "XRP", "ADA",
	"DOGE", "AVAX", "LINK", "ARB", "OP",
}

var supportedAssetSet map[string]bool

func init() {
	supportedAssetSet = make(map[string]bool, len(SupportedAssets))
	for _, a := range SupportedAssets {
		supportedAssetSet[a] = true
	}
}

func IsSupportedAsset(asset string) bool {
	return supportedAssetSet[asset]
}
