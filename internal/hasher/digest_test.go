package hasher

import (
	"encoding/json"
	"testing"
)

func TestParseDigest(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Digest
		wantErr bool
	}{
		{
			name:  "md5",
			input: "md5:9e107d9d372bb6826bd81d3542a419d6",
			want:  Digest{Algorithm: MD5, Hex: "9e107d9d372bb6826bd81d3542a419d6"},
		},
		{
			name:  "upper case hex is normalised",
			input: "xxh64:0B242D361FDA71BC",
			want:  Digest{Algorithm: XXH64, Hex: "0b242d361fda71bc"},
		},
		{name: "missing tag", input: "9e107d9d372bb6826bd81d3542a419d6", wantErr: true},
		{name: "empty tag", input: ":9e107d9d372bb6826bd81d3542a419d6", wantErr: true},
		{name: "unknown tag", input: "crc:00000000", wantErr: true},
		{name: "wrong length", input: "md5:abcd", wantErr: true},
		{name: "not hex", input: "xxh64:zzzzzzzzzzzzzzzz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDigest(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDigest(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDigest(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseDigest(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDigest_Equal(t *testing.T) {
	a := Digest{Algorithm: MD5, Hex: "00"}
	if !a.Equal(Digest{Algorithm: MD5, Hex: "00"}) {
		t.Error("identical digests should be equal")
	}
	if a.Equal(Digest{Algorithm: SHA256, Hex: "00"}) {
		t.Error("digests of different algorithms should not be equal")
	}
	if (Digest{}).Equal(Digest{}) {
		t.Error("zero digests should not be equal")
	}
}

func TestDigest_JSON(t *testing.T) {
	type wrapper struct {
		Hash Digest `json:"hash"`
	}

	in := wrapper{Hash: Digest{Algorithm: SHA256, Hex: "d7a8fbb307d7809469ca9abcb0082e4f8d5651e46d3cdb762d02d0bf37c9e592"}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"hash":"sha256:d7a8fbb307d7809469ca9abcb0082e4f8d5651e46d3cdb762d02d0bf37c9e592"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var out wrapper
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !out.Hash.Equal(in.Hash) {
		t.Errorf("Unmarshal() = %v, want %v", out.Hash, in.Hash)
	}

	if err := json.Unmarshal([]byte(`{"hash":"md5:nothex"}`), &out); err == nil {
		t.Error("Unmarshal() expected error for malformed digest")
	}
}
