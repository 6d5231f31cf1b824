package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"klendrisk/native/lending"
	"klendrisk/services/riskd/registry"
)

func pathAddress(r *http.Request, key string) lending.Address {
	return lending.Address(strings.TrimSpace(chi.URLParam(r, key)))
}

// slotParam reads ?slot=, defaulting to the snapshot slot.
func slotParam(r *http.Request, entry *registry.Entry) (uint64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("slot"))
	if raw == "" {
		return entry.Slot, nil
	}
	slot, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: slot %q", errBadRequest, raw)
	}
	return slot, nil
}

// groupParam reads ?group=. A missing value selects the obligation's group.
func groupParam(r *http.Request) (*uint32, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("group"))
	if raw == "" {
		return nil, nil
	}
	group, err := parseGroup(raw)
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func parseGroup(raw string) (uint32, error) {
	group, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: elevation group %q", errBadRequest, raw)
	}
	return uint32(group), nil
}

// groupsParam reads a comma separated ?groups= list, defaulting to group 0.
func groupsParam(r *http.Request) ([]uint32, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("groups"))
	if raw == "" {
		return []uint32{0}, nil
	}
	parts := strings.Split(raw, ",")
	groups := make([]uint32, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		group, err := parseGroup(part)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func mintParam(r *http.Request) (lending.Address, error) {
	mint := lending.Address(strings.TrimSpace(r.URL.Query().Get("mint")))
	if mint.IsNull() {
		return "", fmt.Errorf("%w: mint is required", errBadRequest)
	}
	return mint, nil
}

func limitParam(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("%w: limit %q", errBadRequest, raw)
	}
	return limit, nil
}
