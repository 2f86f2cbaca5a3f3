package spectro

import (
	"encoding/json"
	"fmt"
)

// Device profile schema versions. Version 1 is the legacy flat shape written
// by early firmware; version 2 is the current shape.
const (
	ProfileSchemaV1      = 1
	ProfileSchemaV2      = 2
	CurrentProfileSchema = ProfileSchemaV2
)

// profileV1 is the legacy shape: coefficients as a bare array, ROI as
// [x, y, w, h] and the fit error under "rmse".
type profileV1 struct {
	DeviceHash string    `json:"device_hash"`
	Coeffs     []float64 `json:"coeffs"`
	ROI        []int     `json:"roi"`
	RMSE       *float64  `json:"rmse"`
	UpdatedAt  int64     `json:"updated_at"`
}

type profileHeader struct {
	SchemaVersion *int `json:"schema_version"`
}

// DecodeDeviceProfile parses any known profile shape and migrates it to the
// current schema. Documents without schema_version are treated as version 1.
func DecodeDeviceProfile(data []byte) (*DeviceProfile, error) {
	var hdr profileHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		return nil, NewError(ErrValidation, "decode profile", err)
	}
	version := ProfileSchemaV1
	if hdr.SchemaVersion != nil {
		version = *hdr.SchemaVersion
	}

	switch version {
	case ProfileSchemaV1:
		var v1 profileV1
		if err := json.Unmarshal(data, &v1); err != nil {
			return nil, NewError(ErrValidation, "decode profile v1", err)
		}
		return migrateV1(v1)
	case ProfileSchemaV2:
		var p DeviceProfile
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, NewError(ErrValidation, "decode profile v2", err)
		}
		if p.DeviceHash == "" {
			return nil, Errorf(ErrValidation, "decode profile v2", "device_hash is required")
		}
		return &p, nil
	default:
		return nil, Errorf(ErrValidation, "decode profile", "unsupported schema_version %d", version)
	}
}

// EncodeDeviceProfile serialises a profile in the current schema.
func EncodeDeviceProfile(p *DeviceProfile) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("nil profile")
	}
	cp := p.Clone()
	cp.SchemaVersion = CurrentProfileSchema
	return json.Marshal(cp)
}

func migrateV1(v1 profileV1) (*DeviceProfile, error) {
	if v1.DeviceHash == "" {
		return nil, Errorf(ErrValidation, "migrate profile v1", "device_hash is required")
	}
	if len(v1.Coeffs) < 2 || len(v1.Coeffs) > 3 {
		return nil, Errorf(ErrValidation, "migrate profile v1", "expected 2 or 3 coefficients, got %d", len(v1.Coeffs))
	}
	if len(v1.ROI) != 4 {
		return nil, Errorf(ErrValidation, "migrate profile v1", "expected roi [x,y,w,h], got %d values", len(v1.ROI))
	}
	p := &DeviceProfile{
		SchemaVersion: CurrentProfileSchema,
		DeviceHash:    v1.DeviceHash,
		PixelToWavelength: Polynomial{
			A0: v1.Coeffs[0],
			A1: v1.Coeffs[1],
		},
		ROI:       ROI{X: v1.ROI[0], Y: v1.ROI[1], W: v1.ROI[2], H: v1.ROI[3]},
		RMSENm:    cloneFloat(v1.RMSE),
		UpdatedAt: v1.UpdatedAt,
	}
	if len(v1.Coeffs) == 3 {
		p.PixelToWavelength.A2 = v1.Coeffs[2]
	}
	return p, nil
}
