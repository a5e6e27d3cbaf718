// SPDX-License-Identifier: MPL-2.0

// Package hostinfo decodes the host inventory written by the host-info step and
// exposes the facts the bootstrap plan depends on as a canonical config layer.
package hostinfo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/homeops/dasboot/internal/config"
)

const (
	// FileName is the inventory command output file under the app config directory.
	FileName = "host.json"
	// LayerName is the name of the canonical layer built from the inventory.
	LayerName = "host"
)

// ErrNoData is returned when the inventory file exists but is empty, which is
// the state the prepare phase leaves it in before the host-info step first runs.
var ErrNoData = errors.New("host inventory is empty")

// ErrCorrupt is returned when the inventory file holds something other than
// the systeminformation JSON, such as the tail of an interrupted write.
var ErrCorrupt = errors.New("host inventory is not valid JSON")

type (
	// Host is the decoded inventory. Unknown fields are ignored.
	Host struct {
		Version   string    `json:"version"`
		System    System    `json:"system"`
		BIOS      BIOS      `json:"bios"`
		Baseboard Baseboard `json:"baseboard"`
		Chassis   Chassis   `json:"chassis"`
		OS        OS        `json:"os"`
		UUID      UUID      `json:"uuid"`
	}

	System struct {
		Manufacturer string `json:"manufacturer"`
		Model        string `json:"model"`
		Version      string `json:"version"`
		Serial       string `json:"serial"`
		UUID         string `json:"uuid"`
		SKU          string `json:"sku"`
		Virtual      bool   `json:"virtual"`
		Type         string `json:"type"`
	}

	BIOS struct {
		Vendor      string `json:"vendor"`
		Version     string `json:"version"`
		ReleaseDate string `json:"releaseDate"`
		Revision    string `json:"revision"`
	}

	Baseboard struct {
		Manufacturer string `json:"manufacturer"`
		Model        string `json:"model"`
		Version      string `json:"version"`
		Serial       string `json:"serial"`
		AssetTag     string `json:"assetTag"`
		MemMax       int64  `json:"memMax"`
		MemSlots     int    `json:"memSlots"`
	}

	Chassis struct {
		Manufacturer string `json:"manufacturer"`
		Model        string `json:"model"`
		Type         string `json:"type"`
		Version      string `json:"version"`
		Serial       string `json:"serial"`
		AssetTag     string `json:"assetTag"`
		SKU          string `json:"sku"`
	}

	OS struct {
		Platform    string `json:"platform"`
		Distro      string `json:"distro"`
		Release     string `json:"release"`
		Codename    string `json:"codename"`
		Kernel      string `json:"kernel"`
		Arch        string `json:"arch"`
		Hostname    string `json:"hostname"`
		FQDN        string `json:"fqdn"`
		Build       string `json:"build"`
		ServicePack string `json:"servicepack"`
		UEFI        bool   `json:"uefi"`
	}

	UUID struct {
		OS       string   `json:"os"`
		Hardware string   `json:"hardware"`
		MACs     []string `json:"macs"`
	}
)

// Path returns the inventory file location under appConfig.
func Path(appConfig string) string {
	return filepath.Join(appConfig, FileName)
}

// Load reads and decodes the inventory at path.
func Load(fsys afero.Fs, path string) (*Host, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read host inventory: %w", err)
	}
	host, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return host, nil
}

// Decode parses inventory command output.
func Decode(data []byte) (*Host, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrNoData
	}
	var h Host
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return &h, nil
}

var debianFamily = []string{"debian", "ubuntu", "mint", "pop!_os", "elementary", "kali", "raspbian"}

// DebianFamily reports whether a distro name, as systeminformation reports it,
// belongs to a distribution that ships apt.
func DebianFamily(distro string) bool {
	d := strings.ToLower(distro)
	for _, name := range debianFamily {
		if strings.Contains(d, name) {
			return true
		}
	}
	return false
}

// IsDebianFamily reports whether the host's distro uses apt.
func (h *Host) IsDebianFamily() bool { return DebianFamily(h.OS.Distro) }

// Layer flattens the facts used by planning into a canonical config layer.
// Empty facts are left out so lower layers are not masked by blanks.
func (h *Host) Layer() (*config.Layer, error) {
	layer := config.NewLayer(LayerName, config.KindCanonical)
	facts := []struct {
		key   string
		value string
	}{
		{"host.os.platform", h.OS.Platform},
		{"host.os.distro", h.OS.Distro},
		{"host.os.release", h.OS.Release},
		{"host.os.codename", h.OS.Codename},
		{"host.os.arch", h.OS.Arch},
		{"host.os.hostname", h.OS.Hostname},
		{"host.system.manufacturer", h.System.Manufacturer},
		{"host.system.model", h.System.Model},
		{"host.system.uuid", h.System.UUID},
		{"host.uuid.hardware", h.UUID.Hardware},
	}
	for _, f := range facts {
		if f.value == "" {
			continue
		}
		if err := layer.Set(f.key, f.value); err != nil {
			return nil, err
		}
	}
	if err := layer.Set("host.system.virtual", h.System.Virtual); err != nil {
		return nil, err
	}
	return layer, nil
}

// LoadLayer loads the inventory under appConfig and returns its layer. A
// missing or empty file yields (nil, nil): the host-info step has not run yet.
func LoadLayer(fsys afero.Fs, appConfig string) (*config.Layer, error) {
	path := Path(appConfig)
	exists, err := afero.Exists(fsys, path)
	if err != nil || !exists {
		return nil, err
	}
	host, err := Load(fsys, path)
	if errors.Is(err, ErrNoData) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	layer, err := host.Layer()
	if err != nil {
		return nil, err
	}
	layer.Path = path
	return layer, nil
}
