// Package seed bootstraps templates from a YAML file at startup.
//
// File format:
//
//	templates:
//	  - code: welcome
//	    name: Welcome email
//	    language: en
//	    subject: "Welcome, {{ name }}"
//	    content: |
//	      Hello {{ name }}, welcome to {{ company }}!
//
// Every entry goes through the Version Manager, so seeded rows obey the
// same validation and versioning rules as API-created ones. An entry whose
// active version already has identical name, subject and content is
// skipped, which makes re-running the seed on every boot harmless.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/tbourn/template-service/internal/domain"
	"github.com/tbourn/template-service/internal/services"
)

// Entry is one template in the seed file.
type Entry struct {
	Code     string  `yaml:"code"`
	Name     string  `yaml:"name"`
	Language string  `yaml:"language"`
	Subject  *string `yaml:"subject"`
	Content  string  `yaml:"content"`
}

// File is the root document of a seed file.
type File struct {
	Templates []Entry `yaml:"templates"`
}

// Creator is the part of services.TemplateService the seeder needs.
type Creator interface {
	ResolveActive(ctx context.Context, code, lang string) (*domain.Template, error)
	CreateNewVersion(ctx context.Context, in services.CreateInput, idemKey string) (*domain.Template, bool, error)
}

// Result summarizes an Apply run.
type Result struct {
	Created int
	Skipped int
}

// Load reads and decodes a seed file. Unknown keys are rejected.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var out File
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("seed: decode %s: %w", path, err)
	}
	return &out, nil
}

// Apply creates a new version for every entry that differs from its group's
// active version. It stops at the first failing entry.
func Apply(ctx context.Context, c Creator, file *File) (Result, error) {
	var res Result
	for i, e := range file.Templates {
		in := services.CreateInput{
			Code: e.Code, Name: e.Name, Language: e.Language,
			Subject: e.Subject, Content: e.Content,
		}
		lang, err := services.NormalizeLanguage(e.Language)
		if err != nil {
			return res, fmt.Errorf("seed: entry %d (%s): %w", i, e.Code, err)
		}

		cur, err := c.ResolveActive(ctx, e.Code, lang)
		switch {
		case err == nil && same(cur, e):
			res.Skipped++
			continue
		case err != nil && !errors.Is(err, services.ErrNotFound):
			return res, fmt.Errorf("seed: entry %d (%s): %w", i, e.Code, err)
		}

		tpl, _, err := c.CreateNewVersion(ctx, in, "")
		if err != nil {
			return res, fmt.Errorf("seed: entry %d (%s): %w", i, e.Code, err)
		}
		res.Created++
		log.Ctx(ctx).Info().Str("template", tpl.String()).Msg("seeded template")
	}
	return res, nil
}

// LoadAndApply is Load followed by Apply.
func LoadAndApply(ctx context.Context, c Creator, path string) (Result, error) {
	f, err := Load(path)
	if err != nil {
		return Result{}, err
	}
	return Apply(ctx, c, f)
}

func same(cur *domain.Template, e Entry) bool {
	if cur.Name != strings.TrimSpace(e.Name) || cur.Content != e.Content {
		return false
	}
	switch {
	case cur.Subject == nil && e.Subject == nil:
		return true
	case cur.Subject == nil || e.Subject == nil:
		return false
	default:
		return *cur.Subject == *e.Subject
	}
}
