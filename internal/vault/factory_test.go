package vault

import (
	"testing"

	"ibk-go/internal/config"
)

func TestNewVaultFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.BackupConfig
		root    string
		wantErr bool
	}{
		{
			name: "memory vault",
			cfg:  config.BackupConfig{Vault: "memory"},
		},
		{
			name: "filesystem vault",
			cfg:  config.BackupConfig{Vault: "filesystem"},
			root: "/tmp/ibk-dest",
		},
		{
			name: "empty type defaults to filesystem",
			cfg:  config.BackupConfig{},
			root: "/tmp/ibk-dest",
		},
		{
			name:    "filesystem vault without root",
			cfg:     config.BackupConfig{Vault: "filesystem"},
			wantErr: true,
		},
		{
			name:    "unknown vault type",
			cfg:     config.BackupConfig{Vault: "s3"},
			root:    "/tmp/ibk-dest",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewVaultFromConfig(tt.cfg, tt.root)

			if (err != nil) != tt.wantErr {
				t.Fatalf("NewVaultFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if got != nil {
					t.Errorf("NewVaultFromConfig() = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("NewVaultFromConfig() returned nil")
			}
			if fs, ok := got.(*FileSystemVault); ok && fs.Root() != tt.root {
				t.Errorf("Root() = %q, want %q", fs.Root(), tt.root)
			}
		})
	}
}
