package spectro

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeDeviceProfile(t *testing.T) {
	rmse := 0.8
	testCases := []struct {
		name    string
		input   string
		want    *DeviceProfile
		wantErr error
	}{
		{
			name:  "legacy_v1_three_coeffs",
			input: `{"device_hash":"abc","coeffs":[400,0.5,0.001],"roi":[10,20,300,40],"rmse":0.8}`,
			want: &DeviceProfile{
				SchemaVersion:     CurrentProfileSchema,
				DeviceHash:        "abc",
				PixelToWavelength: Polynomial{A0: 400, A1: 0.5, A2: 0.001},
				ROI:               ROI{X: 10, Y: 20, W: 300, H: 40},
				RMSENm:            &rmse,
			},
		},
		{
			name:  "legacy_v1_linear",
			input: `{"schema_version":1,"device_hash":"abc","coeffs":[400,0.5],"roi":[0,0,640,10]}`,
			want: &DeviceProfile{
				SchemaVersion:     CurrentProfileSchema,
				DeviceHash:        "abc",
				PixelToWavelength: Polynomial{A0: 400, A1: 0.5},
				ROI:               ROI{W: 640, H: 10},
			},
		},
		{
			name: "current_v2",
			input: `{"schema_version":2,"device_hash":"dev-1",
				"pixel_to_wavelength":{"a0":380,"a1":0.7,"a2":0},
				"roi":{"x":1,"y":2,"w":3,"h":4},"rmse_nm":0.8,"camera":{"model":"cam"}}`,
			want: &DeviceProfile{
				SchemaVersion:     2,
				DeviceHash:        "dev-1",
				PixelToWavelength: Polynomial{A0: 380, A1: 0.7},
				ROI:               ROI{X: 1, Y: 2, W: 3, H: 4},
				RMSENm:            &rmse,
				Camera:            &CameraMeta{Model: "cam"},
			},
		},
		{"v1_bad_coeffs", `{"device_hash":"abc","coeffs":[1],"roi":[0,0,1,1]}`, nil, ErrValidation},
		{"v1_bad_roi", `{"device_hash":"abc","coeffs":[1,2],"roi":[0,0]}`, nil, ErrValidation},
		{"v1_missing_hash", `{"coeffs":[1,2],"roi":[0,0,1,1]}`, nil, ErrValidation},
		{"v2_missing_hash", `{"schema_version":2}`, nil, ErrValidation},
		{"unknown_version", `{"schema_version":9,"device_hash":"x"}`, nil, ErrValidation},
		{"not_json", `{`, nil, ErrValidation},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeDeviceProfile([]byte(tc.input))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("profile mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeDeviceProfile_RoundTripsThroughDecoder(t *testing.T) {
	p := &DeviceProfile{
		SchemaVersion:     1,
		DeviceHash:        "h",
		PixelToWavelength: Polynomial{A0: 350, A1: 1.1, A2: -0.0002},
		ROI:               ROI{W: 100, H: 5},
	}
	data, err := EncodeDeviceProfile(p)
	if err != nil {
		t.Fatalf("EncodeDeviceProfile: %v", err)
	}
	got, err := DecodeDeviceProfile(data)
	if err != nil {
		t.Fatalf("DecodeDeviceProfile: %v", err)
	}
	want := p.Clone()
	want.SchemaVersion = CurrentProfileSchema
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if p.SchemaVersion != 1 {
		t.Error("EncodeDeviceProfile must not mutate its argument")
	}
}
