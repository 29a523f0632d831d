package ledger

import "sync"

// AssetID maps wrapped-asset symbols to numeric IDs for compact keys
type AssetID uint16

var (
	assetMu   sync.RWMutex
	assetToID = map[string]AssetID{
		"wBTC":  1,
		"wETH":  2,
		"wUSDT": 3,
		"wDAI":  4,
	}
	idToAsset = map[AssetID]string{
		1: "wBTC",
		2: "wETH",
		3: "wUSDT",
		4: "wDAI",
	}
	nextAssetID AssetID = 5
)

func GetAssetID(asset string) (AssetID, bool) {
	assetMu.RLock()
	defer assetMu.RUnlock()
	id, ok := assetToID[asset]
	return id, ok
}

func GetAssetName(id AssetID) (string, bool) {
	assetMu.RLock()
	defer assetMu.RUnlock()
	name, ok := idToAsset[id]
	return name, ok
}

// RegisterAsset adds a wrapped asset to the registry. Idempotent: registering
// a known symbol returns its existing ID.
func RegisterAsset(asset string) AssetID {
	assetMu.Lock()
	defer assetMu.Unlock()

	if id, ok := assetToID[asset]; ok {
		return id
	}

	id := nextAssetID
	nextAssetID++
	assetToID[asset] = id
	idToAsset[id] = asset
	return id
}
