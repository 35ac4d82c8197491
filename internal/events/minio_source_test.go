package events

import "testing"

func TestParseObjectKey(t *testing.T) {
	tests := []struct {
		name        string
		objectKey   string
		wantClaimID string
		wantFile    string
		wantErr     bool
	}{
		{name: "valid", objectKey: "CLM-AB12CD34/police_report.pdf", wantClaimID: "CLM-AB12CD34", wantFile: "police_report.pdf"},
		{name: "valid nested", objectKey: "CLM-AB12CD34/photos/front.jpg", wantClaimID: "CLM-AB12CD34", wantFile: "photos/front.jpg"},
		{name: "invalid no slash", objectKey: "CLM-AB12CD34", wantErr: true},
		{name: "invalid empty", objectKey: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			claimID, filename, err := parseObjectKey(tc.objectKey)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if claimID != tc.wantClaimID {
				t.Fatalf("claimID mismatch: got %q want %q", claimID, tc.wantClaimID)
			}
			if filename != tc.wantFile {
				t.Fatalf("filename mismatch: got %q want %q", filename, tc.wantFile)
			}
		})
	}
}

func TestDecodeObjectKey(t *testing.T) {
	decoded, err := decodeObjectKey("CLM-AB12CD34%2Fdamage%20photos.zip")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded != "CLM-AB12CD34/damage photos.zip" {
		t.Fatalf("decoded mismatch: got %q", decoded)
	}
}
