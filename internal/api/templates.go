package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"

	"github.com/scandeck/scandeck/internal/store"
)

// listTemplatesHandler returns the template catalog with optional
// source, status, severity, and free-text filters.
func (s *Server) listTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	source := s.GetQueryParam(r, "source", "")
	status := s.GetQueryParam(r, "status", "")
	severity := s.GetQueryParam(r, "severity", "")
	query := strings.ToLower(s.GetQueryParam(r, "q", ""))

	templates := s.store.Templates()
	filtered := templates[:0]
	for _, t := range templates {
		if source != "" && string(t.Source) != source {
			continue
		}
		if status != "" && string(t.Status) != status {
			continue
		}
		if severity != "" && string(t.Severity) != severity {
			continue
		}
		if query != "" && !templateMatches(t, query) {
			continue
		}
		filtered = append(filtered, t)
	}

	params := s.GetPaginationParams(r)
	total := int64(len(filtered))
	start := params.Offset
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + params.PageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	s.WritePaginatedResponse(w, r, filtered[start:end], params, total)
}

func templateMatches(t *store.Template, query string) bool {
	if strings.Contains(strings.ToLower(t.Name), query) ||
		strings.Contains(strings.ToLower(t.TemplateID), query) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

// getTemplateHandler returns a single template by id.
func (s *Server) getTemplateHandler(w http.ResponseWriter, r *http.Request) {
	tmpl, err := s.store.Template(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, err)
		return
	}
	s.WriteJSON(w, r, http.StatusOK, tmpl)
}

// UploadTemplatesRequest carries one or more template files to add to
// the catalog.
type UploadTemplatesRequest struct {
	Files []UploadedFile `json:"files"`
}

// UploadedFile is a single template file body.
type UploadedFile struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// templateDocument is the subset of the template YAML format the
// console reads.
type templateDocument struct {
	ID   string `yaml:"id"`
	Info struct {
		Name        string   `yaml:"name"`
		Author      string   `yaml:"author"`
		Severity    string   `yaml:"severity"`
		Description string   `yaml:"description"`
		Reference   []string `yaml:"reference"`
		Tags        string   `yaml:"tags"`
	} `yaml:"info"`
	HTTP     []yaml.Node `yaml:"http"`
	DNS      []yaml.Node `yaml:"dns"`
	SSL      []yaml.Node `yaml:"ssl"`
	Network  []yaml.Node `yaml:"network"`
	File     []yaml.Node `yaml:"file"`
	Headless []yaml.Node `yaml:"headless"`
}

// protocol infers the execution protocol from which request section the
// document defines.
func (doc *templateDocument) protocol() store.Protocol {
	switch {
	case len(doc.HTTP) > 0:
		return store.ProtocolHTTP
	case len(doc.DNS) > 0:
		return store.ProtocolDNS
	case len(doc.SSL) > 0:
		return store.ProtocolSSL
	case len(doc.Network) > 0:
		return store.ProtocolNetwork
	case len(doc.File) > 0:
		return store.ProtocolFile
	case len(doc.Headless) > 0:
		return store.ProtocolHeadless
	default:
		return store.ProtocolHTTP
	}
}

// uploadTemplatesHandler parses uploaded template files and adds them to
// the catalog as unvalidated custom templates. A file that fails to
// parse rejects the whole upload so partial batches never land.
func (s *Server) uploadTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	var req UploadTemplatesRequest
	if err := s.ParseJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if len(req.Files) == 0 {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("no files given"))
		return
	}

	now := time.Now().UTC()
	templates := make([]*store.Template, 0, len(req.Files))
	for _, file := range req.Files {
		var doc templateDocument
		if err := yaml.Unmarshal([]byte(file.Content), &doc); err != nil {
			s.writeError(w, r, http.StatusBadRequest,
				fmt.Errorf("failed to parse %s: %w", file.Filename, err))
			return
		}
		if doc.ID == "" {
			s.writeError(w, r, http.StatusBadRequest,
				fmt.Errorf("%s: template id is required", file.Filename))
			return
		}

		severity := store.Severity(strings.ToLower(doc.Info.Severity))
		if !severity.Valid() {
			severity = store.SeverityInfo
		}
		name := doc.Info.Name
		if name == "" {
			name = doc.ID
		}
		var tags []string
		for _, tag := range strings.Split(doc.Info.Tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}

		templates = append(templates, &store.Template{
			ID:          "tmpl-" + uuid.New().String(),
			TemplateID:  doc.ID,
			Name:        name,
			Severity:    severity,
			Tags:        tags,
			Protocol:    doc.protocol(),
			Author:      doc.Info.Author,
			Source:      store.SourceCustom,
			Status:      store.TemplateNotValidated,
			Description: doc.Info.Description,
			FilePath:    "custom/" + file.Filename,
			CreatedAt:   now,
			UpdatedAt:   now,
			References:  doc.Info.Reference,
		})
	}

	s.store.AddTemplates(templates)
	s.WriteJSON(w, r, http.StatusCreated, map[string]interface{}{
		"uploaded":  len(templates),
		"templates": templates,
	})
}

// validateTemplateHandler kicks off a validation for one template. The
// call returns immediately; the template moves through the validating
// state and clients observe the verdict via polling or the WebSocket
// feed.
func (s *Server) validateTemplateHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.store.Template(id); err != nil {
		s.writeError(w, r, http.StatusNotFound, err)
		return
	}

	go func() {
		if _, err := s.validator.Validate(context.Background(), id); err != nil {
			s.logger.Error("Template validation failed", "template_id", id, "error", err)
		}
	}()

	s.WriteJSON(w, r, http.StatusAccepted, map[string]interface{}{
		"template_id": id,
		"status":      "validation_started",
	})
}

// validateCustomHandler kicks off a sequential revalidation of every
// custom template not already mid-validation.
func (s *Server) validateCustomHandler(w http.ResponseWriter, r *http.Request) {
	go func() {
		if _, err := s.validator.ValidateCustom(context.Background()); err != nil {
			s.logger.Error("Custom template sweep failed", "error", err)
		}
	}()

	s.WriteJSON(w, r, http.StatusAccepted, map[string]interface{}{
		"status": "validation_started",
	})
}
