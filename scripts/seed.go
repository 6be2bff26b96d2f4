//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/gorkemoa/todobus/internal/auth"
	"github.com/gorkemoa/todobus/internal/database"
	"github.com/gorkemoa/todobus/internal/database/models"
	"github.com/gorkemoa/todobus/pkg/config"
	"github.com/gorkemoa/todobus/pkg/util"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// Create demo user
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService)

	email := os.Getenv("SEED_EMAIL")
	password := os.Getenv("SEED_PASSWORD")
	name := os.Getenv("SEED_NAME")

	if email == "" {
		email = "demo@todobus.app"
	}
	if password == "" {
		password = "demo1234!"
	}
	if name == "" {
		name = "Demo User"
	}

	resp, err := authService.Register(context.Background(), auth.RegisterInput{
		Email:    email,
		Password: password,
		Name:     name,
	})

	if err != nil {
		if err == auth.ErrUserExists {
			fmt.Printf("Demo user already exists: %s\n", email)
			return
		}
		log.Fatalf("failed to create demo user: %v", err)
	}

	// Seed a starter group with one project and a few tasks
	group := models.Group{Name: "Getting Started", Description: "Your first group"}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		member := models.GroupMember{
			GroupID: group.ID,
			UserID:  resp.User.ID,
			Role:    models.RoleAdmin,
		}
		if err := tx.Create(&member).Error; err != nil {
			return err
		}

		project := models.Project{
			Name:    "Welcome Project",
			GroupID: group.ID,
			Status:  models.ProjectOpen,
		}
		if err := tx.Create(&project).Error; err != nil {
			return err
		}

		titles := []string{"Invite a teammate", "Create your first task", "Complete a task"}
		for _, title := range titles {
			task := models.Task{
				Title:       title,
				Status:      models.TaskPending,
				Priority:    models.PriorityMedium,
				ProjectID:   project.ID,
				CreatedByID: resp.User.ID,
			}
			if err := tx.Create(&task).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("failed to seed demo data: %v", err)
	}

	fmt.Printf("Demo user created successfully!\n")
	fmt.Printf("Email: %s\n", resp.User.Email)
	fmt.Printf("Group: %s\n", group.Name)
	fmt.Printf("Token: %s\n", resp.Token)
}
