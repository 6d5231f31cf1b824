package snapshot

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
	"lukechampine.com/blake3"

	"klendrisk/native/lending"
)

// Format identifies a snapshot encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

var (
	ErrUnsupportedFormat  = errors.New("snapshot: unsupported format")
	ErrMissingMarket      = errors.New("snapshot: market address required")
	ErrObligationNotFound = errors.New("snapshot: obligation not found")
)

// ReserveEntry pairs a decoded reserve with its oracle price in USD per whole
// token.
type ReserveEntry struct {
	State lending.ReserveState `json:"state"`
	Price decimal.Decimal      `json:"price"`
}

// Snapshot is one consistent view of a lending market: the market account,
// every reserve with a price, and the obligations to evaluate, all taken at
// Slot.
type Snapshot struct {
	Slot        uint64                    `json:"slot"`
	Config      lending.Config            `json:"config"`
	Market      lending.MarketState       `json:"market"`
	Reserves    []ReserveEntry            `json:"reserves"`
	Obligations []lending.ObligationState `json:"obligations"`
}

// FormatFromPath infers the encoding from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ParseFormat maps a user supplied format name such as a Content-Type subtype.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json", "application/json":
		return FormatJSON, nil
	case "yaml", "yml", "application/yaml", "application/x-yaml", "text/yaml":
		return FormatYAML, nil
	case "toml", "application/toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// Load reads and decodes a snapshot file.
func Load(path string) (*Snapshot, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	return Decode(data, format)
}

// Decode parses a snapshot. YAML and TOML documents are first read into
// generic values and re-encoded as JSON so that every format shares the JSON
// field names and the scaled-integer encoding of fixed-point fields. YAML
// integer literals keep their digits, so unquoted scaled values of any size
// survive. TOML integers are limited to int64; larger values must be quoted.
func Decode(data []byte, format Format) (*Snapshot, error) {
	var (
		doc []byte
		err error
	)
	switch format {
	case FormatJSON:
		doc = data
	case FormatYAML:
		var root yaml.Node
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("snapshot: decode yaml: %w", err)
		}
		generic, convErr := yamlValue(&root)
		if convErr != nil {
			return nil, fmt.Errorf("snapshot: decode yaml: %w", convErr)
		}
		doc, err = json.Marshal(generic)
	case FormatTOML:
		generic := make(map[string]interface{})
		if _, err := toml.Decode(string(data), &generic); err != nil {
			return nil, fmt.Errorf("snapshot: decode toml: %w", err)
		}
		doc, err = json.Marshal(generic)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: re-encode %s: %w", format, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(doc, &snap); err != nil {
		return nil, fmt.Errorf("snapshot: decode %s: %w", format, err)
	}
	snap.Config.EnsureDefaults()
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// yamlValue converts a yaml node tree into JSON compatible values. Decimal
// integer scalars become json.Number so that values beyond 2^53 are not
// rounded through float64.
func yamlValue(node *yaml.Node) (interface{}, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return yamlValue(node.Content[0])
	case yaml.AliasNode:
		return yamlValue(node.Alias)
	case yaml.MappingNode:
		out := make(map[string]interface{}, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			value, err := yamlValue(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[node.Content[i].Value] = value
		}
		return out, nil
	case yaml.SequenceNode:
		out := make([]interface{}, 0, len(node.Content))
		for _, item := range node.Content {
			value, err := yamlValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, value)
		}
		return out, nil
	case yaml.ScalarNode:
		if node.ShortTag() == "!!int" && isDecimalInteger(node.Value) {
			return json.Number(strings.TrimPrefix(node.Value, "+")), nil
		}
		var value interface{}
		if err := node.Decode(&value); err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return value, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported yaml node kind %d", node.Line, node.Kind)
	}
}

func isDecimalInteger(s string) bool {
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		s = s[1:]
	}
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Validate checks the structural requirements that Build relies on.
func (s *Snapshot) Validate() error {
	if s == nil {
		return errors.New("snapshot: nil snapshot")
	}
	if s.Market.Address.IsNull() {
		return ErrMissingMarket
	}
	if err := s.Config.Validate(); err != nil {
		return err
	}
	for i, entry := range s.Reserves {
		if entry.State.Address.IsNull() {
			return fmt.Errorf("snapshot: reserve %d has no address", i)
		}
		if entry.Price.IsNegative() {
			return fmt.Errorf("snapshot: reserve %s has a negative price", entry.State.Address)
		}
	}
	return nil
}

// Prices returns the oracle prices keyed by liquidity mint.
func (s *Snapshot) Prices() lending.Prices {
	prices := make(lending.Prices, len(s.Reserves))
	for _, entry := range s.Reserves {
		prices[entry.State.Liquidity.MintPubkey] = entry.Price
	}
	return prices
}

// Build constructs the immutable market for the snapshot.
func (s *Snapshot) Build() (*lending.Market, error) {
	states := make([]lending.ReserveState, 0, len(s.Reserves))
	for _, entry := range s.Reserves {
		states = append(states, entry.State)
	}
	return lending.NewMarket(s.Config, s.Market, states, s.Prices())
}

// Obligation returns the obligation with the given address.
func (s *Snapshot) Obligation(address lending.Address) (lending.ObligationState, error) {
	for _, o := range s.Obligations {
		if o.Address == address {
			return o.Clone(), nil
		}
	}
	return lending.ObligationState{}, fmt.Errorf("%w: %s", ErrObligationNotFound, address)
}

// Canonical returns the JSON encoding used for hashing and persistence.
func (s *Snapshot) Canonical() ([]byte, error) {
	return json.Marshal(s)
}

// Digest is the content hash of the canonical encoding.
func (s *Snapshot) Digest() (string, error) {
	data, err := s.Canonical()
	if err != nil {
		return "", err
	}
	return Hash(data), nil
}

// Hash returns the hex encoded blake3-256 digest of data.
func Hash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
