package store

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"checkin-desk-backend/internal/model"
)

// Seed is a YAML description of instances and their registrations, used to
// stand a desk up without an upstream registration system.
type Seed struct {
	Instances []SeedInstance `yaml:"instances"`
}

type SeedInstance struct {
	ID            string             `yaml:"id"`
	EventName     string             `yaml:"event_name"`
	Title         string             `yaml:"title"`
	StartDate     string             `yaml:"start_date"`
	StartTime     string             `yaml:"start_time"`
	Registrations []SeedRegistration `yaml:"registrations"`
}

type SeedRegistration struct {
	ID        string `yaml:"id"`
	Code      string `yaml:"code"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Email     string `yaml:"email"`
	Status    string `yaml:"status"`
}

// LoadSeed reads a seed file.
func LoadSeed(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var seed Seed
	if err := yaml.NewDecoder(f).Decode(&seed); err != nil {
		return nil, fmt.Errorf("decode seed %s: %w", path, err)
	}
	return &seed, nil
}

// Apply upserts the seed. Missing ids and check-in codes are generated.
func (seed *Seed) Apply(ctx context.Context, st Store) (int, error) {
	var (
		instances []model.EventInstance
		regs      []model.Registration
	)
	for _, si := range seed.Instances {
		if si.StartDate == "" || si.EventName == "" {
			return 0, fmt.Errorf("seed instance %q needs event_name and start_date", si.ID)
		}
		id := si.ID
		if id == "" {
			id = uuid.NewString()
		}
		instances = append(instances, model.EventInstance{
			ID:        id,
			EventName: si.EventName,
			Title:     si.Title,
			StartDate: si.StartDate,
			StartTime: si.StartTime,
		})
		for _, sr := range si.Registrations {
			regID := sr.ID
			if regID == "" {
				regID = uuid.NewString()
			}
			code := sr.Code
			if code == "" {
				code = codeFor(regID)
			}
			regs = append(regs, model.Registration{
				ID:          regID,
				InstanceID:  id,
				CheckinCode: code,
				FirstName:   sr.FirstName,
				LastName:    sr.LastName,
				Email:       sr.Email,
				Status:      sr.Status,
			})
		}
	}

	if err := st.UpsertInstances(ctx, instances); err != nil {
		return 0, fmt.Errorf("seed instances: %w", err)
	}
	if err := st.UpsertRegistrations(ctx, regs); err != nil {
		return 0, fmt.Errorf("seed registrations: %w", err)
	}
	return len(regs), nil
}

func codeFor(regID string) string {
	s := strings.ToUpper(strings.ReplaceAll(regID, "-", ""))
	if len(s) > 8 {
		s = s[:8]
	}
	return "QR-" + s
}
