package common

import (
	"fmt"
	"strings"
	"time"
)

// Constellation defines the kind of satellites
type Constellation int

const (
	Unknown   Constellation = iota
	Sentinel1               // MMM_BB_TTTR_LFPP_YYYYMMDDTHHMMSS_YYYMMDDTHHMMSS_OOOOOO_DDDDDD_CCCC
	Sentinel2               // MMM_MSIXXX_YYYYMMDDTHHMMSS_Nxxyy_ROOO_Txxxxx_<Product Discriminator>
)

// GetConstellationFromString returns the constellation from the user input or a product name
func GetConstellationFromString(input string) Constellation {
	switch strings.ToLower(input) {
	case "sentinel1", "sentinel-1":
		return Sentinel1
	case "sentinel2", "sentinel-2":
		return Sentinel2
	}
	return GetConstellationFromProductName(input)
}

func GetConstellationFromProductName(name string) Constellation {
	switch {
	case strings.HasPrefix(name, "S1"):
		return Sentinel1
	case strings.HasPrefix(name, "S2"):
		return Sentinel2
	}
	return Unknown
}

const sentinel2CompactName = "MMM_MSIXXX_YYYYMMDDTHHMMSS_Nxxyy_ROOO_Txxxxx_YYYYMMDDTHHMMSS"

// Info parses a Sentinel-2 product name (compact naming convention) into its fields:
// SCENE, MISSION_ID, PRODUCT_LEVEL, DATE (YEAR/MONTH/DAY), TIME (HOUR/MINUTE/SECOND), PDGS, ORBIT,
// TILE (LATITUDE_BAND/GRID_SQUARE/GRANULE_ID), PRODUCT_DISC
func Info(name string) (map[string]string, error) {
	name = strings.TrimSuffix(name, ".SAFE")
	if GetConstellationFromProductName(name) != Sentinel2 {
		return nil, fmt.Errorf("Info: not a Sentinel-2 product: %s", name)
	}
	if len(name) < len(sentinel2CompactName) || name[10] != '_' {
		return nil, fmt.Errorf("Info: invalid Sentinel-2 product name: %s", name)
	}
	return map[string]string{
		"SCENE":         name,
		"MISSION_ID":    name[0:3],
		"PRODUCT_LEVEL": name[7:10],
		"DATE":          name[11:19],
		"YEAR":          name[11:15],
		"MONTH":         name[15:17],
		"DAY":           name[17:19],
		"TIME":          name[20:26],
		"HOUR":          name[20:22],
		"MINUTE":        name[22:24],
		"SECOND":        name[24:26],
		"PDGS":          name[28:32],
		"ORBIT":         name[34:37],
		"TILE":          name[38:44],
		"LATITUDE_BAND": name[39:41],
		"GRID_SQUARE":   name[41:42],
		"GRANULE_ID":    name[42:44],
		"PRODUCT_DISC":  name[45:60],
	}, nil
}

// GetDateFromProductName returns the sensing date of the product
func GetDateFromProductName(name string) (time.Time, error) {
	info, err := Info(name)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse("20060102", info["DATE"])
}

// FormatBrackets replaces in str all the {KEY} of infos by the corresponding value
func FormatBrackets(str string, infos ...map[string]string) string {
	for _, info := range infos {
		for k, v := range info {
			str = strings.ReplaceAll(str, "{"+k+"}", v)
		}
	}
	return str
}
