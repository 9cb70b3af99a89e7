// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev admin (admin@example.com) already exists.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	alertdomain "appliance-fieldops/authcore/internal/alert/domain"
	alertrepo "appliance-fieldops/authcore/internal/alert/repository"
	"appliance-fieldops/authcore/internal/config"
	"appliance-fieldops/authcore/internal/db"
	"appliance-fieldops/authcore/internal/errs"
	eventdomain "appliance-fieldops/authcore/internal/event/domain"
	policydomain "appliance-fieldops/authcore/internal/policy/domain"
	policyrepo "appliance-fieldops/authcore/internal/policy/repository"
	"appliance-fieldops/authcore/internal/role"
	"appliance-fieldops/authcore/internal/security"
	userdomain "appliance-fieldops/authcore/internal/user/domain"
	userrepo "appliance-fieldops/authcore/internal/user/repository"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "password123"
	techPhone     = "+15550100001"
)

// fieldHoursPolicy tightens the default odd-hour window for local testing.
const fieldHoursPolicy = `package fieldops.login

odd_hour if {
	input.login.hour < 7
}

odd_hour if {
	input.login.hour >= 22
}
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Pool.Close()

	users := userrepo.NewPostgresRepository(database)
	if _, err := users.GetByEmail(ctx, adminEmail); err == nil {
		fmt.Println("seed data already present, nothing to do")
		return
	} else if !errors.Is(err, errs.ErrNotFound) {
		log.Fatalf("seed check: %v", err)
	}

	hasher := security.NewHasher(0)
	hash, err := hasher.Hash([]byte(adminPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	seedUsers := []*userdomain.User{
		{ID: uuid.NewString(), Email: adminEmail, Role: role.Admin, PasswordHash: hash},
		{ID: uuid.NewString(), Phone: techPhone, Role: role.Technician},
	}
	for _, u := range seedUsers {
		u.Status = userdomain.UserStatusActive
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("create user %s: %v", u.ID, err)
		}
	}

	policies := policyrepo.NewPostgresRepository(database)
	err = policies.Create(ctx, &policydomain.LoginPolicy{
		ID:      uuid.NewString(),
		Name:    "field-hours",
		Rules:   fieldHoursPolicy,
		Enabled: true,
	})
	if err != nil {
		log.Fatalf("create login policy: %v", err)
	}

	alerts := alertrepo.NewPostgresRepository(database)
	rules := []*alertdomain.AlertRule{
		{
			ID:            uuid.NewString(),
			Name:          "otp-abuse",
			Description:   "Too many one-time codes requested for one identifier",
			IsActive:      true,
			Severity:      "warning",
			SourceType:    alertdomain.SourceOTPRequests,
			WindowMinutes: 10,
			Threshold:     10,
			GroupByField:  "identifier",
		},
		{
			ID:            uuid.NewString(),
			Name:          "failed-logins-per-ip",
			Description:   "Repeated failed logins from one address",
			IsActive:      true,
			Severity:      "warning",
			SourceType:    alertdomain.SourceSecurityEvents,
			EventType:     eventdomain.TypeLoginFailed,
			WindowMinutes: 15,
			Threshold:     5,
			GroupByField:  "ip_address",
		},
		{
			ID:            uuid.NewString(),
			Name:          "repeat-device-conflicts",
			Description:   "One account bouncing between devices",
			IsActive:      true,
			Severity:      "critical",
			SourceType:    alertdomain.SourceDeviceConflicts,
			WindowMinutes: 60,
			Threshold:     3,
			GroupByField:  "user_id",
		},
	}
	for _, rule := range rules {
		if err := alerts.CreateRule(ctx, rule); err != nil {
			log.Fatalf("create alert rule %s: %v", rule.Name, err)
		}
	}

	fmt.Println("seeded dev admin, technician, login policy, and alert rules")
}
