package device

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout of devices.seed_file.
type seedFile struct {
	Devices []seedDevice `yaml:"devices"`
}

type seedDevice struct {
	ID           string     `yaml:"id"`
	Type         string     `yaml:"device_type"`
	Status       string     `yaml:"status"`
	AvailableAt  *time.Time `yaml:"available_at"`
	NQubits      int        `yaml:"n_qubits"`
	NNodes       *int       `yaml:"n_nodes"`
	BasisGates   []string   `yaml:"basis_gates"`
	Instructions []string   `yaml:"instructions"`
	Description  string     `yaml:"description"`
}

// LoadSeedFile parses a YAML device list. Status defaults to available.
func LoadSeedFile(path string) ([]Device, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return parseSeed(data)
}

func parseSeed(data []byte) ([]Device, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}

	devices := make([]Device, 0, len(f.Devices))
	for i, sd := range f.Devices {
		d := Device{
			ID:           sd.ID,
			Type:         Type(sd.Type),
			Status:       Status(sd.Status),
			AvailableAt:  sd.AvailableAt,
			NQubits:      sd.NQubits,
			NNodes:       sd.NNodes,
			BasisGates:   sd.BasisGates,
			Instructions: sd.Instructions,
			Description:  sd.Description,
		}
		if d.Status == "" {
			d.Status = StatusAvailable
		}
		if err := Validate(&d); err != nil {
			return nil, fmt.Errorf("seed device %d (%s): %w", i, sd.ID, err)
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// Seed upserts every device into repo.
func Seed(ctx context.Context, repo Repository, devices []Device) error {
	for i := range devices {
		if err := repo.Upsert(ctx, &devices[i]); err != nil {
			return fmt.Errorf("seeding device %s: %w", devices[i].ID, err)
		}
	}
	return nil
}
