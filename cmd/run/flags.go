package main

import (
	"fmt"
	"strings"

	"github.com/wippyai/wasi-runner/runtime"
)

// host[:guest][:ro]
type dirs struct {
	values  []runtime.Preopen
	strings []string
}

func parseDir(s string) (runtime.Preopen, error) {
	parts := strings.Split(s, ":")
	readOnly := false
	if n := len(parts); n > 1 && parts[n-1] == "ro" {
		readOnly = true
		parts = parts[:n-1]
	}

	var p runtime.Preopen
	switch len(parts) {
	case 1:
		p = runtime.Preopen{HostPath: parts[0], GuestPath: parts[0]}
	case 2:
		p = runtime.Preopen{HostPath: parts[0], GuestPath: parts[1]}
	default:
		return runtime.Preopen{}, fmt.Errorf("malformed dir '%v': dirs must be of the form host[:guest][:ro]", s)
	}
	if p.HostPath == "" || p.GuestPath == "" {
		return runtime.Preopen{}, fmt.Errorf("malformed dir '%v': empty path", s)
	}
	if !strings.HasPrefix(p.GuestPath, "/") {
		p.GuestPath = "/" + p.GuestPath
	}
	p.ReadOnly = readOnly
	return p, nil
}

func (d *dirs) String() string {
	return strings.Join(d.strings, ",")
}

func (d *dirs) Set(s string) error {
	p, err := parseDir(s)
	if err != nil {
		return err
	}
	d.values, d.strings = append(d.values, p), append(d.strings, s)
	return nil
}

func (d *dirs) Type() string {
	return "dir"
}

// KEY=VALUE
type envVars struct {
	values  map[string]string
	strings []string
}

func (e *envVars) String() string {
	return strings.Join(e.strings, ",")
}

func (e *envVars) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return fmt.Errorf("malformed env '%v': env must be of the form KEY=VALUE", s)
	}
	if e.values == nil {
		e.values = make(map[string]string)
	}
	e.values[k] = v
	e.strings = append(e.strings, s)
	return nil
}

func (e *envVars) Type() string {
	return "env"
}
