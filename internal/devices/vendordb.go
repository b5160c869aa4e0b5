// -*- Mode: Go; indent-tabs-mode: t -*-

package devices

import (
	"fmt"
	"os"

	"github.com/mvo5/goconfigparser"

	"github.com/icarito/transwacom/internal/logger"
)

// VendorDB resolves a (vendor_id, product_id) pair to a human-readable
// device name using a local INI-style database (one section per
// "vendor:product" pair, a "name" key), mirroring the vendor/product
// identification original_source/device_detector.py performs against
// its bundled tables. Missing entries are not an error: Lookup reports
// false and Resolve returns the descriptor unchanged.
type VendorDB struct {
	cfg *goconfigparser.ConfigParser
}

// LoadVendorDB reads path as an INI file. A missing file yields an
// empty (but usable) database.
func LoadVendorDB(path string) (*VendorDB, error) {
	cfg := goconfigparser.New()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &VendorDB{cfg: cfg}, nil
		}
		return nil, fmt.Errorf("devices: cannot stat vendor db %s: %w", path, err)
	}
	if err := cfg.ReadFile(path); err != nil {
		logger.Noticef("devices: ignoring malformed vendor db %s: %v", path, err)
		return &VendorDB{cfg: goconfigparser.New()}, nil
	}
	return &VendorDB{cfg: cfg}, nil
}

// Lookup returns the known name for a vendor/product ID pair.
func (v *VendorDB) Lookup(vendorID, productID string) (string, bool) {
	if v == nil || vendorID == "" || productID == "" {
		return "", false
	}
	section := vendorID + ":" + productID
	name, err := v.cfg.Get(section, "name")
	if err != nil || name == "" {
		return "", false
	}
	return name, true
}

// Resolve fills in d.Name from the database when d.Name is empty and
// both IDs are known, otherwise returns d unchanged.
func (v *VendorDB) Resolve(d Descriptor) Descriptor {
	if d.Name != "" {
		return d
	}
	if name, ok := v.Lookup(d.VendorID, d.ProductID); ok {
		d.Name = name
	}
	return d
}
