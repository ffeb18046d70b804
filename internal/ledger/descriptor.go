package ledger

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

//go:embed contract/Certification.abi.json
var certificationABI []byte

var parseCertificationABI = sync.OnceValues(func() (abi.ABI, error) {
	return abi.JSON(bytes.NewReader(certificationABI))
})

// CertificationABI returns the embedded contract interface.
func CertificationABI() abi.ABI {
	parsed, err := parseCertificationABI()
	if err != nil {
		panic(fmt.Sprintf("embedded certification ABI: %v", err))
	}
	return parsed
}

// Descriptor maps network ids to the contract's deployed address.
type Descriptor struct {
	ABI      abi.ABI
	Networks map[uint64]common.Address
}

// NewDescriptor pairs the embedded ABI with the given deployments.
func NewDescriptor(networks map[uint64]common.Address) *Descriptor {
	return &Descriptor{ABI: CertificationABI(), Networks: maps.Clone(networks)}
}

// Address returns the deployment on networkID.
func (d *Descriptor) Address(networkID uint64) (common.Address, bool) {
	if d == nil {
		return common.Address{}, false
	}
	addr, ok := d.Networks[networkID]
	return addr, ok
}

// Merge adds deployments, overriding existing entries for the same network.
func (d *Descriptor) Merge(networks map[uint64]common.Address) {
	if d.Networks == nil {
		d.Networks = make(map[uint64]common.Address, len(networks))
	}
	maps.Copy(d.Networks, networks)
}

// truffleArtifact is the subset of a Truffle build artifact we read.
type truffleArtifact struct {
	ABI      json.RawMessage `json:"abi"`
	Networks map[string]struct {
		Address string `json:"address"`
	} `json:"networks"`
}

// LoadArtifact reads a Truffle build artifact.
func LoadArtifact(r io.Reader) (*Descriptor, error) {
	var art truffleArtifact
	if err := json.NewDecoder(r).Decode(&art); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if len(art.ABI) == 0 {
		return nil, fmt.Errorf("artifact has no abi")
	}
	parsed, err := abi.JSON(bytes.NewReader(art.ABI))
	if err != nil {
		return nil, fmt.Errorf("parse artifact abi: %w", err)
	}
	for _, method := range []string{MethodGenerateCertificate, MethodIsVerified, MethodGetCertificateData} {
		if _, ok := parsed.Methods[method]; !ok {
			return nil, fmt.Errorf("artifact abi is missing %s", method)
		}
	}

	networks := make(map[uint64]common.Address, len(art.Networks))
	for id, deployment := range art.Networks {
		networkID, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("artifact network %q: %w", id, err)
		}
		if !common.IsHexAddress(deployment.Address) {
			return nil, fmt.Errorf("artifact network %d: invalid address %q", networkID, deployment.Address)
		}
		networks[networkID] = common.HexToAddress(deployment.Address)
	}
	return &Descriptor{ABI: parsed, Networks: networks}, nil
}

// LoadArtifactFile reads a Truffle build artifact from disk.
func LoadArtifactFile(path string) (*Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadArtifact(f)
}

// ParseDeployments parses "id=0xaddr,id=0xaddr".
func ParseDeployments(value string) (map[uint64]common.Address, error) {
	networks := make(map[uint64]common.Address)
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, addr, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("deployment %q: expected id=address", entry)
		}
		networkID, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("deployment %q: %w", entry, err)
		}
		addr = strings.TrimSpace(addr)
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("deployment %q: invalid address", entry)
		}
		networks[networkID] = common.HexToAddress(addr)
	}
	return networks, nil
}
