package enforce

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oarkflow/date"
)

// DSL Syntax:
// version <n>
// engine <key>=<value>...
// policy <id> [rev:<n>]
// entry <label>
// subject <issuer:name> [expires:<time>]
// grant <path> <PERM[,PERM...]>
// revoke <path> <PERM[,PERM...]>
//
// "entry" lines attach to the most recent "policy", "subject"/"grant"/
// "revoke" lines to the most recent "entry". Blank lines and "#" comments
// are ignored.

type DSLParser struct {
	line int
}

func NewDSLParser() *DSLParser {
	return &DSLParser{}
}

func (p *DSLParser) Parse(data []byte) (*Config, error) {
	cfg := &Config{Version: 1}
	var (
		policy *Policy
		entry  *PolicyEntry
	)
	flushEntry := func() {
		if policy != nil && entry != nil {
			policy.Entries = append(policy.Entries, *entry)
		}
		entry = nil
	}
	flushPolicy := func() {
		flushEntry()
		if policy != nil {
			cfg.Policies = append(cfg.Policies, policy)
		}
		policy = nil
	}

	for p.line = 1; len(data) > 0; p.line++ {
		var line string
		if idx := strings.IndexByte(string(data), '\n'); idx >= 0 {
			line = string(data[:idx])
			data = data[idx+1:]
		} else {
			line = string(data)
			data = nil
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "version":
			if len(fields) != 2 {
				return nil, p.errf("version takes one argument")
			}
			v, err := strconv.ParseUint(fields[1], 10, 16)
			if err != nil {
				return nil, p.errf("bad version %q", fields[1])
			}
			cfg.Version = uint16(v)
		case "engine":
			if err := p.parseEngine(fields[1:], &cfg.Engine); err != nil {
				return nil, err
			}
		case "policy":
			if len(fields) < 2 {
				return nil, p.errf("policy needs an id")
			}
			flushPolicy()
			policy = &Policy{ID: fields[1]}
			for _, f := range fields[2:] {
				if rev, ok := strings.CutPrefix(f, "rev:"); ok {
					n, err := strconv.ParseInt(rev, 10, 64)
					if err != nil {
						return nil, p.errf("bad revision %q", rev)
					}
					policy.Revision = n
				}
			}
		case "entry":
			if policy == nil {
				return nil, p.errf("entry outside policy")
			}
			if len(fields) != 2 {
				return nil, p.errf("entry needs a label")
			}
			flushEntry()
			entry = &PolicyEntry{Label: fields[1]}
		case "subject":
			if entry == nil {
				return nil, p.errf("subject outside entry")
			}
			if len(fields) < 2 {
				return nil, p.errf("subject needs an id")
			}
			subject := Subject{ID: SubjectID(fields[1])}
			for _, f := range fields[2:] {
				if exp, ok := strings.CutPrefix(f, "expires:"); ok {
					t, err := parseExpiry(exp)
					if err != nil {
						return nil, p.errf("bad expiry %q: %v", exp, err)
					}
					subject.ExpiresAt = t
				}
			}
			entry.Subjects = append(entry.Subjects, subject)
		case "grant", "revoke":
			if entry == nil {
				return nil, p.errf("%s outside entry", fields[0])
			}
			if len(fields) != 3 {
				return nil, p.errf("%s needs a path and a permission list", fields[0])
			}
			path, err := ParseResourcePath(fields[1])
			if err != nil {
				return nil, p.errf("%v", err)
			}
			perms := NewPermissionSet()
			for _, tok := range strings.Split(fields[2], ",") {
				if tok == "" {
					return nil, p.errf("empty permission token")
				}
				perms[Permission(tok)] = struct{}{}
			}
			row := findResource(entry, path)
			if fields[0] == "grant" {
				row.Grant = row.Grant.Union(perms)
			} else {
				row.Revoke = row.Revoke.Union(perms)
			}
		default:
			return nil, p.errf("unknown directive %q", fields[0])
		}
	}
	flushPolicy()
	return cfg, nil
}

func (p *DSLParser) parseEngine(fields []string, ec *EngineConfig) error {
	for _, f := range fields {
		key, val, ok := strings.Cut(f, "=")
		if !ok {
			return p.errf("engine settings are key=value, got %q", f)
		}
		switch key {
		case "read_permission":
			ec.ReadPermission = Permission(val)
		case "ristretto_num_counter", "ristretto_max_cost", "ristretto_buffer":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return p.errf("bad engine value %q", f)
			}
			switch key {
			case "ristretto_num_counter":
				ec.RistrettoNumCounter = n
			case "ristretto_max_cost":
				ec.RistrettoMaxCost = n
			case "ristretto_buffer":
				ec.RistrettoBuffer = n
			}
		default:
			return p.errf("unknown engine setting %q", key)
		}
	}
	return nil
}

func (p *DSLParser) errf(format string, args ...any) error {
	return fmt.Errorf("line %d: %s", p.line, fmt.Sprintf(format, args...))
}

func findResource(entry *PolicyEntry, path ResourcePath) *ResourceGrant {
	for i := range entry.Resources {
		if entry.Resources[i].Path.Equal(path) {
			return &entry.Resources[i]
		}
	}
	entry.Resources = append(entry.Resources, ResourceGrant{
		Path:   path,
		Grant:  NewPermissionSet(),
		Revoke: NewPermissionSet(),
	})
	return &entry.Resources[len(entry.Resources)-1]
}

// parseExpiry accepts RFC3339 first and falls back to flexible formats.
func parseExpiry(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return date.Parse(s)
}

type DSLEncoder struct {
	buf []byte
}

func NewDSLEncoder() *DSLEncoder {
	return &DSLEncoder{buf: make([]byte, 0, 4096)}
}

func (e *DSLEncoder) Encode(cfg *Config) ([]byte, error) {
	e.buf = e.buf[:0]

	e.buf = append(e.buf, "version "...)
	e.buf = strconv.AppendUint(e.buf, uint64(cfg.Version), 10)
	e.buf = append(e.buf, '\n')

	if ec := cfg.Engine; ec != (EngineConfig{}) {
		e.buf = append(e.buf, "engine"...)
		if ec.ReadPermission != "" {
			e.buf = append(e.buf, " read_permission="...)
			e.buf = append(e.buf, ec.ReadPermission...)
		}
		e.appendEngineInt("ristretto_num_counter", ec.RistrettoNumCounter)
		e.appendEngineInt("ristretto_max_cost", ec.RistrettoMaxCost)
		e.appendEngineInt("ristretto_buffer", ec.RistrettoBuffer)
		e.buf = append(e.buf, '\n')
	}

	for _, p := range cfg.Policies {
		e.buf = append(e.buf, "policy "...)
		e.buf = append(e.buf, p.ID...)
		if p.Revision != 0 {
			e.buf = append(e.buf, " rev:"...)
			e.buf = strconv.AppendInt(e.buf, p.Revision, 10)
		}
		e.buf = append(e.buf, '\n')

		for _, entry := range p.Entries {
			e.buf = append(e.buf, "entry "...)
			e.buf = append(e.buf, entry.Label...)
			e.buf = append(e.buf, '\n')

			for _, s := range entry.Subjects {
				e.buf = append(e.buf, "subject "...)
				e.buf = append(e.buf, s.ID...)
				if !s.ExpiresAt.IsZero() {
					e.buf = append(e.buf, " expires:"...)
					e.buf = s.ExpiresAt.UTC().AppendFormat(e.buf, time.RFC3339)
				}
				e.buf = append(e.buf, '\n')
			}
			for _, res := range entry.Resources {
				e.appendPerms("grant ", res.Path, res.Grant)
				e.appendPerms("revoke ", res.Path, res.Revoke)
			}
		}
	}
	out := make([]byte, len(e.buf))
	copy(out, e.buf)
	return out, nil
}

func (e *DSLEncoder) appendEngineInt(key string, v int64) {
	if v == 0 {
		return
	}
	e.buf = append(e.buf, ' ')
	e.buf = append(e.buf, key...)
	e.buf = append(e.buf, '=')
	e.buf = strconv.AppendInt(e.buf, v, 10)
}

func (e *DSLEncoder) appendPerms(directive string, path ResourcePath, perms PermissionSet) {
	if perms.IsEmpty() {
		return
	}
	e.buf = append(e.buf, directive...)
	e.buf = append(e.buf, path.String()...)
	e.buf = append(e.buf, ' ')
	for i, perm := range perms.Slice() {
		if i > 0 {
			e.buf = append(e.buf, ',')
		}
		e.buf = append(e.buf, perm...)
	}
	e.buf = append(e.buf, '\n')
}
