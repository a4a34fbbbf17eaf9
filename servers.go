package memcache

import (
	"net"
	"strconv"
	"strings"
)

// DefaultMaxWeight is the largest weight a server can have unless Config.MaxWeight says otherwise.
const DefaultMaxWeight = 15

// ServerSpec describes one server of the pool.
// A Weight of zero means 1. Weights above the configured maximum are clamped.
type ServerSpec struct {
	Addr   string
	Weight int
}

func (s ServerSpec) String() string {
	if s.Weight <= 1 {
		return s.Addr
	}
	return s.Addr + "=" + strconv.Itoa(s.Weight)
}

// Servers returns a spec of weight 1 for each address.
func Servers(addrs ...string) []ServerSpec {
	specs := make([]ServerSpec, len(addrs))
	for i, addr := range addrs {
		specs[i] = ServerSpec{Addr: addr, Weight: 1}
	}
	return specs
}

// ParseServerSpec parses "host:port" or "host:port=weight".
func ParseServerSpec(s string) (ServerSpec, error) {
	addr, weightStr, hasWeight := strings.Cut(strings.TrimSpace(s), "=")

	spec := ServerSpec{Addr: addr, Weight: 1}
	if hasWeight {
		weight, err := strconv.Atoi(weightStr)
		if err != nil {
			return ServerSpec{}, &ServerSpecError{Spec: s, Reason: "weight is not a number"}
		}
		if weight < 1 {
			return ServerSpec{}, &ServerSpecError{Spec: s, Reason: "weight must be at least 1"}
		}
		spec.Weight = weight
	}

	if err := spec.validate(); err != nil {
		return ServerSpec{}, err
	}
	return spec, nil
}

// ParseServerSpecs parses a list of specs separated by commas or whitespace,
// such as "10.0.0.1:11211=2, 10.0.0.2:11211".
func ParseServerSpecs(list string) ([]ServerSpec, error) {
	fields := strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})

	specs := make([]ServerSpec, 0, len(fields))
	for _, f := range fields {
		spec, err := ParseServerSpec(f)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (s ServerSpec) validate() error {
	if !strings.Contains(s.Addr, ":") {
		return &ServerSpecError{Spec: s.String(), Reason: "expected host:port"}
	}

	if _, port, err := net.SplitHostPort(s.Addr); err != nil {
		return &ServerSpecError{Spec: s.String(), Reason: err.Error()}
	} else if port == "" {
		return &ServerSpecError{Spec: s.String(), Reason: "missing port"}
	}

	if s.Weight < 0 {
		return &ServerSpecError{Spec: s.String(), Reason: "weight must be positive"}
	}
	return nil
}

// normalize validates the spec and returns its effective weight.
func (s ServerSpec) normalize(maxWeight int) (int, error) {
	if err := s.validate(); err != nil {
		return 0, err
	}

	weight := s.Weight
	if weight == 0 {
		weight = 1
	}
	return min(weight, maxWeight), nil
}
