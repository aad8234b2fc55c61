package main

import (
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"

	"portal/internal/database"
	"portal/internal/domain"
)

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "portal.db"
	}

	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}

	log.Println("Running AutoMigrate...")
	if err := db.AutoMigrate(
		&domain.Account{},
		&domain.AuthState{},
	); err != nil {
		log.Fatal("AutoMigrate failed:", err)
	}

	log.Println("Cleaning old data...")
	db.Exec("DELETE FROM auth_states")
	db.Exec("DELETE FROM accounts")

	log.Println("Creating accounts...")

	org := int64(1)

	superHash, _ := bcrypt.GenerateFromPassword([]byte("super123"), bcrypt.DefaultCost)
	super := domain.Account{
		Email:        "super@portal.local",
		PasswordHash: string(superHash),
		Name:         "Super Admin",
		Role:         domain.RoleSuperAdmin,
		Status:       domain.StatusActive,
	}
	db.Create(&super)
	log.Println("Super admin created: super@portal.local / super123")

	adminHash, _ := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	admin := domain.Account{
		Email:          "admin@portal.local",
		PasswordHash:   string(adminHash),
		Name:           "Org Admin",
		Role:           domain.RoleAdmin,
		Status:         domain.StatusActive,
		OrganizationID: &org,
	}
	db.Create(&admin)
	log.Println("Admin created: admin@portal.local / admin123")

	users := []struct {
		email string
		name  string
	}{
		{"alice@portal.local", "Alice"},
		{"bob@portal.local", "Bob"},
		{"carol@portal.local", "Carol"},
	}
	for _, u := range users {
		hash, _ := bcrypt.GenerateFromPassword([]byte("user1234"), bcrypt.DefaultCost)
		account := domain.Account{
			Email:          u.email,
			PasswordHash:   string(hash),
			Name:           u.name,
			Role:           domain.RoleUser,
			Status:         domain.StatusActive,
			OrganizationID: &org,
		}
		db.Create(&account)
		log.Printf("User created: %s / user1234", u.email)
	}

	log.Println("Seed completed")
}
