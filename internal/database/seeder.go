// server/internal/database/seeder.go
package database

import (
	"context"
	"log"

	"freshchain-ledger-server/config"
	"freshchain-ledger-server/internal/auth"
	"freshchain-ledger-server/internal/models"
)

// SeedAdmin creates the admin account bound to the ledger owner address if it is missing.
func SeedAdmin(ctx context.Context, users *UserStore, cfg config.Config) error {
	owner, err := cfg.OwnerAddress()
	if err != nil {
		return err
	}
	if cfg.Admin.Email == "" || cfg.Admin.Password == "" {
		log.Println("Admin credentials not configured. Seeding skipped.")
		return nil
	}

	count, err := users.CountByEmail(ctx, cfg.Admin.Email)
	if err != nil {
		return err
	}
	if count > 0 {
		log.Println("Admin already exists. Seeding skipped.")
		return nil
	}

	log.Println("Admin not found. Seeding...")
	hashedPassword, err := auth.HashPassword(cfg.Admin.Password)
	if err != nil {
		return err
	}

	name := cfg.Admin.Name
	if name == "" {
		name = "Ledger Owner"
	}
	_, err = users.Create(ctx, models.User{
		Email:       cfg.Admin.Email,
		Name:        name,
		Password:    hashedPassword,
		Address:     owner.Hex(),
		AccountRole: auth.AccountRoleAdmin,
		Status:      models.UserStatusActive,
	})
	if err != nil {
		return err
	}

	log.Printf("Admin %s seeded for ledger owner %s.", cfg.Admin.Email, owner.Hex())
	return nil
}
