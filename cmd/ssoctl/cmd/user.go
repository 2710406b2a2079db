package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.pilab.hu/solosso/config"
	"go.pilab.hu/solosso/domain"
	"go.pilab.hu/solosso/internal/auth"
	"go.pilab.hu/solosso/mongodb"
)

var userCmd = &cobra.Command{
	Use:     "user",
	Short:   "Manage the user directory",
	Aliases: []string{"users"},
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a user to the MongoDB user directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		nickname, _ := cmd.Flags().GetString("nickname")
		password, _ := cmd.Flags().GetString("password")
		scheme, _ := cmd.Flags().GetString("scheme")
		mongoURI, _ := cmd.Flags().GetString("mongo-uri")
		dbName, _ := cmd.Flags().GetString("mongo-db")

		if username == "" {
			return errors.New("username is required via --username flag")
		}
		if password == "" {
			var err error
			if password, err = readPassword("Enter password: "); err != nil {
				return err
			}
		}
		if password == "" {
			return errors.New("password must not be empty")
		}

		hasher, err := auth.NewPasswordHasher(scheme)
		if err != nil {
			return err
		}
		secret, err := hasher.Hash(password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		if err := mongodb.InitMongoDB(ctx, mongoURI, dbName); err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		defer mongodb.CloseMongoDB(context.Background())

		repo, err := mongodb.NewUserRepository(ctx, mongodb.GetDB())
		if err != nil {
			return err
		}

		user := &domain.User{Username: username, Password: secret, Nickname: nickname}
		if err := repo.CreateUser(ctx, user); err != nil {
			return err
		}

		appLogger.Debug(ctx, "User created", map[string]interface{}{"username": username, "scheme": scheme})
		fmt.Printf("User %s created (ID: %s).\n", user.Username, user.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd)

	userAddCmd.Flags().String("username", "", "login name, unique in the directory")
	userAddCmd.Flags().String("nickname", "", "display name returned at login")
	userAddCmd.Flags().String("password", "", "password (prompted when empty)")
	userAddCmd.Flags().String("scheme", config.PasswordPlain, "how the secret is stored: plain or bcrypt")
	userAddCmd.Flags().String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection string")
	userAddCmd.Flags().String("mongo-db", "solosso", "MongoDB database name")
}
