package database

import (
	"errors"
	"fmt"
	"log"
	"time"

	"livepoll/internal/domain/poll"
	"livepoll/internal/domain/user"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedConfig holds configuration for seeding the database
type SeedConfig struct {
	AdminEmail     string
	AdminPassword  string
	AdminUsername  string
	CreateDemoData bool
	DemoUserCount  int
}

// DefaultSeedConfig returns default seed configuration
func DefaultSeedConfig() *SeedConfig {
	return &SeedConfig{
		AdminEmail:     "admin@livepoll.dev",
		AdminPassword:  "Admin@123!",
		AdminUsername:  "admin",
		CreateDemoData: true,
		DemoUserCount:  5,
	}
}

// SeedResult holds the result of the seeding operation
type SeedResult struct {
	AdminUser *user.User
	DemoUsers []*user.User
	Polls     []*poll.Poll
	VoteCount int
}

// Seed runs the complete database seeding
func Seed(cfg *SeedConfig) (*SeedResult, error) {
	if cfg == nil {
		cfg = DefaultSeedConfig()
	}

	result := &SeedResult{}

	log.Println("Starting database seeding...")

	adminUser, err := seedAdminUser(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to seed admin user: %w", err)
	}
	result.AdminUser = adminUser

	if cfg.CreateDemoData {
		demoUsers, err := seedDemoUsers(cfg.DemoUserCount)
		if err != nil {
			return nil, fmt.Errorf("failed to seed demo users: %w", err)
		}
		result.DemoUsers = demoUsers

		polls, err := seedDemoPolls(adminUser, demoUsers)
		if err != nil {
			return nil, fmt.Errorf("failed to seed demo polls: %w", err)
		}
		result.Polls = polls

		votes, err := seedDemoVotes(polls, demoUsers)
		if err != nil {
			return nil, fmt.Errorf("failed to seed demo votes: %w", err)
		}
		result.VoteCount = votes
	}

	log.Println("Database seeding completed successfully!")
	return result, nil
}

// SeedMinimal runs minimal seeding (admin user only)
func SeedMinimal(cfg *SeedConfig) (*user.User, error) {
	if cfg == nil {
		cfg = DefaultSeedConfig()
	}
	return seedAdminUser(cfg)
}

// seedAdminUser creates the admin user
func seedAdminUser(cfg *SeedConfig) (*user.User, error) {
	var existing user.User
	err := DB.Where("email = ?", cfg.AdminEmail).First(&existing).Error
	if err == nil {
		log.Println("Admin user already exists, skipping creation")
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	adminUser := &user.User{
		ID:           uuid.New(),
		Email:        cfg.AdminEmail,
		Username:     cfg.AdminUsername,
		PasswordHash: string(hashedPassword),
		DisplayName:  "Administrator",
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := DB.Create(adminUser).Error; err != nil {
		return nil, err
	}

	log.Printf("Admin user seeded: %s (%s)", cfg.AdminEmail, adminUser.ID)
	return adminUser, nil
}

// seedDemoUsers creates demo users for development
func seedDemoUsers(count int) ([]*user.User, error) {
	demoUserData := []struct {
		email       string
		username    string
		displayName string
	}{
		{"alice@demo.dev", "alice", "Alice Johnson"},
		{"bob@demo.dev", "bob", "Bob Smith"},
		{"charlie@demo.dev", "charlie", "Charlie Brown"},
		{"diana@demo.dev", "diana", "Diana Prince"},
		{"edward@demo.dev", "edward", "Edward Chen"},
		{"fiona@demo.dev", "fiona", "Fiona Green"},
		{"george@demo.dev", "george", "George Miller"},
		{"hannah@demo.dev", "hannah", "Hannah White"},
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("Demo@123!"), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	users := make([]*user.User, 0, count)
	for i := 0; i < count && i < len(demoUserData); i++ {
		data := demoUserData[i]

		var existing user.User
		err := DB.Where("email = ?", data.email).First(&existing).Error
		if err == nil {
			users = append(users, &existing)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		u := &user.User{
			ID:           uuid.New(),
			Email:        data.email,
			Username:     data.username,
			PasswordHash: string(hashedPassword),
			DisplayName:  data.displayName,
			IsActive:     true,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
		if err := DB.Create(u).Error; err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	log.Printf("Seeded %d demo users", len(users))
	return users, nil
}

// seedDemoPolls creates a handful of polls with options
func seedDemoPolls(admin *user.User, demoUsers []*user.User) ([]*poll.Poll, error) {
	demoPollData := []struct {
		title   string
		options []string
	}{
		{"Which language should we adopt for the next service?", []string{"Go", "Rust", "TypeScript", "Python"}},
		{"Best day for the weekly sync?", []string{"Monday", "Wednesday", "Friday"}},
		{"Tabs or spaces?", []string{"Tabs", "Spaces"}},
	}

	owners := append([]*user.User{admin}, demoUsers...)

	polls := make([]*poll.Poll, 0, len(demoPollData))
	for i, data := range demoPollData {
		var existing poll.Poll
		err := DB.Where("title = ?", data.title).First(&existing).Error
		if err == nil {
			polls = append(polls, &existing)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		owner := owners[i%len(owners)]
		p := &poll.Poll{
			ID:        uuid.New(),
			OwnerID:   owner.ID,
			Title:     data.title,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}

		err = DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(p).Error; err != nil {
				return err
			}
			for pos, text := range data.options {
				opt := &poll.Option{
					ID:         uuid.New(),
					PollID:     p.ID,
					OptionText: text,
					Position:   pos,
				}
				if err := tx.Create(opt).Error; err != nil {
					return err
				}
				p.Options = append(p.Options, *opt)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		polls = append(polls, p)
	}

	log.Printf("Seeded %d demo polls", len(polls))
	return polls, nil
}

// seedDemoVotes spreads votes from the demo users across the seeded polls
func seedDemoVotes(polls []*poll.Poll, demoUsers []*user.User) (int, error) {
	votes := 0
	for _, p := range polls {
		if len(p.Options) == 0 {
			if err := DB.Where("poll_id = ?", p.ID).Order("position asc").Find(&p.Options).Error; err != nil {
				return votes, err
			}
		}
		if len(p.Options) == 0 {
			continue
		}
		for i, u := range demoUsers {
			opt := p.Options[i%len(p.Options)]
			v := &poll.Vote{
				ID:        uuid.New(),
				PollID:    p.ID,
				UserID:    u.ID,
				OptionID:  opt.ID,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}
			err := DB.Create(v).Error
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			if err != nil {
				return votes, err
			}
			votes++
		}
	}

	log.Printf("Seeded %d demo votes", votes)
	return votes, nil
}
