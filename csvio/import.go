// ABOUTME: CSV lead import with fuzzy header detection
// ABOUTME: Maps spreadsheet rows in varied layouts onto Lead records
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/coldflow/coldflow/models"
	"github.com/coldflow/coldflow/sync"
)

// HeaderMap records which raw column was matched for each known field.
type HeaderMap struct {
	CompanyName string
	ContactName string
	Phone       string
	Site        string
	Maps        string
	Instagram   string
	Facebook    string
	WhatsApp    string
	Rating      string
	Profession  string
	Segment     string
	Origin      string
	OriginLink  string
}

// Options control how imported rows are tagged.
type Options struct {
	// OriginOverride forces the origin label on every imported lead.
	// Empty means auto-detect from links and the origem column.
	OriginOverride string
	// OriginOtherLabel names the origin when OriginOverride is "Outro".
	OriginOtherLabel string
	Now              time.Time
}

// Result is the outcome of an import run.
type Result struct {
	Leads    []models.Lead
	Skipped  int
	Warnings []string
	Headers  HeaderMap
}

// Column aliases are matched by substring against accent-stripped,
// lowercased header names. Spreadsheets from prospecting tools use
// Portuguese headers in many spellings.
var headerAliases = map[string][]string{
	"companyName": {"nome", "empresa", "estabelecimento", "razao", "fantasia", "negocio"},
	"contactName": {"responsavel", "contato", "decisor", "proprietario", "dono"},
	"phone":       {"telefone", "tel", "celular", "fone", "whatsapp", "wpp", "contato"},
	"site":        {"site", "website", "web", "pagina", "url"},
	"maps":        {"googlemaps", "google maps", "maps", "gmaps", "mapa"},
	"instagram":   {"instagram", "insta"},
	"facebook":    {"facebook", "fb"},
	"whatsapp":    {"whatsapp", "wpp", "wa.me"},
	"rating":      {"avaliacao", "rating", "nota", "review"},
	"profession":  {"profissao", "categoria", "tipo", "ramo", "atividade"},
	"segment":     {"segmento"},
	"origin":      {"origem", "fonte"},
	"originLink":  {"link", "url", "origem link"},
}

var segmentKeywords = map[string][]string{
	"Advogados":               {"advogado", "advocacia", "juridico", "direito"},
	"Tecnologia / SaaS":       {"tecnologia", "software", "saas", "startup", "sistemas", "digital", "aplicativo"},
	"Contabilidade":           {"contabil", "contador"},
	"Médicos":                 {"medico", "hospital", "clinica medica", "saude"},
	"Clínica Odontológica":    {"odont", "dentista"},
	"Clínicas Estéticas":      {"estetica", "dermatologia", "harmonizacao", "spa"},
	"Clínicas no geral":       {"clinica", "terapia", "psicologia", "fisioterapia", "fono", "nutri"},
	"Agrícola":                {"agricola", "agricultura", "fazenda"},
	"Agronegócio":             {"agronegocio", "agritech", "cooperativa", "silo", "insumos agricolas"},
	"Pecuária":                {"pecuaria", "gado", "boi", "leite", "bovino"},
	"Imobiliária":             {"imobiliaria", "corretor", "imovel"},
	"Engenharia / Construção": {"engenharia", "construcao", "obra", "arquitet", "empreiteira"},
	"Indústria":               {"industria", "fabrica", "manufatura", "metalurgica"},
	"Logística / Transporte":  {"logistica", "transporte", "frete", "cargas", "transportadora"},
	"Academia":                {"academia", "fitness", "crossfit", "musculacao", "pilates"},
	"Restaurante":             {"restaurante", "lanchonete", "pizzaria", "hamburgueria", "cafeteria", "padaria"},
	"Hotelaria / Turismo":     {"hotel", "pousada", "turismo", "resort"},
	"Serviços B2B":            {"consultoria", "agencia", "marketing", "publicidade", "b2b"},
	"Escola / Curso":          {"escola", "curso", "educacao", "idioma", "colegio", "faculdade"},
	"Jardim | Plantas":        {"jardinagem", "paisagismo", "plantas", "jardim", "floricultura"},
}

var urlPattern = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+)`)

// ReadLeads parses CSV from r and maps every row to a Lead. The first record
// is the header row.
func ReadLeads(r io.Reader, opts Options) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return &Result{}, nil
	}

	headers := records[0]
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\uFEFF")
	}

	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}

	return MapRows(headers, rows, opts), nil
}

// MapRows converts pre-split rows to leads. Exposed separately so callers
// with non-CSV tabular sources can reuse the mapping.
func MapRows(headers []string, rows []map[string]string, opts Options) *Result {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	hm := detectHeaders(headers)
	result := &Result{Headers: hm}

	for _, row := range rows {
		companyName := row[hm.CompanyName]
		if companyName == "" {
			companyName = row[hm.ContactName]
		}
		if companyName == "" {
			result.Skipped++
			continue
		}

		contactName := row[hm.ContactName]
		phone := row[hm.Phone]
		siteURL := row[hm.Site]

		links := collectLinks(hm, row)
		autoLink := ""
		if len(links) > 0 {
			autoLink = links[0]
		}

		origin := originFromLink(autoLink)
		if origin == "" {
			origin = originFromText(row[hm.Origin])
		}
		if origin == "" {
			if autoLink != "" {
				origin = models.OriginSite
			} else {
				origin = models.OriginOther
			}
		}
		originLink := autoLink
		if opts.OriginOverride != "" {
			origin = opts.OriginOverride
			if opts.OriginOverride == models.OriginOther && opts.OriginOtherLabel != "" {
				origin = opts.OriginOtherLabel
			}
			if preferred := overrideLink(opts.OriginOverride, hm, row); preferred != "" {
				originLink = preferred
			}
		}

		segmentRaw := row[hm.Segment]
		if segmentRaw == "" {
			segmentRaw = row[hm.Profession]
		}

		now := opts.Now.UnixMilli()
		result.Leads = append(result.Leads, models.Lead{
			ID:           sync.NewLeadID(opts.Now),
			UpdatedAt:    now,
			CompanyName:  companyName,
			Decisors:     []models.Contact{{Name: contactName, Phone: phone}},
			Origin:       origin,
			OriginLink:   originLink,
			OriginRating: parseRating(row[hm.Rating]),
			SiteURL:      siteURL,
			Segment:      inferSegment(segmentRaw),
			Status:       models.StatusNew,
			NeedsSync:    true,
		})
	}

	if hm.CompanyName == "" {
		result.Warnings = append(result.Warnings, "company/name column not identified")
	}
	if hm.Phone == "" {
		result.Warnings = append(result.Warnings, "phone column not identified")
	}
	if hm.Profession == "" && hm.Segment == "" {
		result.Warnings = append(result.Warnings, "profession/segment column not identified")
	}

	return result
}

func detectHeaders(headers []string) HeaderMap {
	type normHeader struct {
		raw  string
		norm string
	}
	normalized := make([]normHeader, len(headers))
	for i, h := range headers {
		normalized[i] = normHeader{raw: h, norm: sync.NormalizeText(h)}
	}

	find := func(field string) string {
		for _, h := range normalized {
			for _, alias := range headerAliases[field] {
				if strings.Contains(h.norm, sync.NormalizeText(alias)) {
					return h.raw
				}
			}
		}
		return ""
	}

	return HeaderMap{
		CompanyName: find("companyName"),
		ContactName: find("contactName"),
		Phone:       find("phone"),
		Site:        find("site"),
		Maps:        find("maps"),
		Instagram:   find("instagram"),
		Facebook:    find("facebook"),
		WhatsApp:    find("whatsapp"),
		Rating:      find("rating"),
		Profession:  find("profession"),
		Segment:     find("segment"),
		Origin:      find("origin"),
		OriginLink:  find("originLink"),
	}
}

// collectLinks gathers candidate origin links, mapped columns first in
// priority order, then any URL found anywhere in the row.
func collectLinks(hm HeaderMap, row map[string]string) []string {
	var links []string
	for _, v := range []string{row[hm.Maps], row[hm.Instagram], row[hm.Facebook], row[hm.WhatsApp], row[hm.Site], row[hm.OriginLink]} {
		if v != "" {
			links = append(links, v)
		}
	}
	for _, val := range row {
		links = append(links, urlPattern.FindAllString(val, -1)...)
	}
	return links
}

func overrideLink(override string, hm HeaderMap, row map[string]string) string {
	switch override {
	case models.OriginInstagram:
		return row[hm.Instagram]
	case models.OriginFacebook:
		return row[hm.Facebook]
	case models.OriginWhatsApp:
		return row[hm.WhatsApp]
	case models.OriginGoogleMaps:
		return row[hm.Maps]
	case models.OriginSite:
		return row[hm.Site]
	}
	return ""
}

func originFromLink(link string) string {
	if link == "" {
		return ""
	}
	lower := strings.ToLower(link)
	switch {
	case strings.Contains(lower, "google.com/maps"), strings.Contains(lower, "goo.gl/maps"), strings.Contains(lower, "maps.app.goo.gl"):
		return models.OriginGoogleMaps
	case strings.Contains(lower, "instagram.com"):
		return models.OriginInstagram
	case strings.Contains(lower, "facebook.com"), strings.Contains(lower, "fb.com"):
		return models.OriginFacebook
	case strings.Contains(lower, "wa.me"), strings.Contains(lower, "whatsapp.com"):
		return models.OriginWhatsApp
	}
	return models.OriginSite
}

func originFromText(text string) string {
	if text == "" {
		return ""
	}
	norm := sync.NormalizeText(text)
	switch {
	case strings.Contains(norm, "google"), strings.Contains(norm, "maps"):
		return models.OriginGoogleMaps
	case strings.Contains(norm, "instagram"):
		return models.OriginInstagram
	case strings.Contains(norm, "facebook"):
		return models.OriginFacebook
	case strings.Contains(norm, "whatsapp"), strings.Contains(norm, "wpp"):
		return models.OriginWhatsApp
	case strings.Contains(norm, "indicacao"):
		return models.OriginReferral
	case strings.Contains(norm, "site"):
		return models.OriginSite
	}
	return ""
}

func inferSegment(text string) string {
	if text == "" {
		return models.SegmentOther
	}
	norm := sync.NormalizeText(text)
	for segment := range segmentKeywords {
		if sync.NormalizeText(segment) == norm {
			return segment
		}
	}
	for segment, keywords := range segmentKeywords {
		for _, kw := range keywords {
			if strings.Contains(norm, kw) {
				return segment
			}
		}
	}
	return models.SegmentOther
}

var ratingPattern = regexp.MustCompile(`[\d.]+`)

func parseRating(value string) *float64 {
	if value == "" {
		return nil
	}
	match := ratingPattern.FindString(strings.ReplaceAll(value, ",", "."))
	if match == "" {
		return nil
	}
	rating, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}
	return &rating
}
