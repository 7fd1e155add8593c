package domain

import (
	"fmt"
	"strings"
)

// NameSyncPolicy decide que hacer si Auth0 rechaza un cambio de nombre.
type NameSyncPolicy int

const (
	// NameSyncBestEffort registra el fallo y actualiza igualmente el registro local.
	NameSyncBestEffort NameSyncPolicy = iota
	// NameSyncFailFast aborta sin escribir localmente.
	NameSyncFailFast
)

// ParseNameSyncPolicy traduce el valor de configuracion.
func ParseNameSyncPolicy(v string) (NameSyncPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "best_effort":
		return NameSyncBestEffort, nil
	case "fail_fast":
		return NameSyncFailFast, nil
	}
	return NameSyncBestEffort, fmt.Errorf("unknown name sync policy %q", v)
}

// UnmarshalText permite leer la politica directamente desde variables de entorno.
func (p *NameSyncPolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseNameSyncPolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p NameSyncPolicy) String() string {
	if p == NameSyncFailFast {
		return "fail_fast"
	}
	return "best_effort"
}
