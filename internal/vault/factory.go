package vault

import (
	"fmt"

	"ibk-go/internal/config"
	"ibk-go/internal/ibk"
)

// NewVaultFromConfig creates a Vault for the destination root based on the configured vault type.
func NewVaultFromConfig(cfg config.BackupConfig, root string) (ibk.Vault, error) {
	switch cfg.Vault {
	case "memory":
		return NewMemoryVault(), nil
	case "filesystem", "":
		if root == "" {
			return nil, fmt.Errorf("filesystem vault requires a destination root")
		}
		return NewFileSystemVault(root), nil
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Vault)
	}
}
