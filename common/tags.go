package common

// Product tags
const (
	TagSourceID             = "sourceID"
	TagUUID                 = "uuid"
	TagIngestionDate        = "ingestionDate"
	TagConstellation        = "constellation"
	TagSatellite            = "satellite"
	TagOrbitDirection       = "orbitDirection"
	TagRelativeOrbit        = "relativeOrbit"
	TagOrbit                = "orbit"
	TagProductType          = "productType"
	TagCloudCoverPercentage = "cloudCoverPercentage"
	TagTile                 = "tile"
	TagFootprint            = "footprint"
)
