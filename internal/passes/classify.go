package passes

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/docveil/docveil/internal/config"
	"github.com/docveil/docveil/internal/entity"
	"github.com/docveil/docveil/internal/logger"
	"github.com/docveil/docveil/internal/pipeline"
)

// Document types produced by the classifier.
const (
	DocInvoice        = "INVOICE"
	DocLetter         = "LETTER"
	DocForm           = "FORM"
	DocContract       = "CONTRACT"
	DocMedical        = "MEDICAL"
	DocLegal          = "LEGAL"
	DocCorrespondence = "CORRESPONDENCE"
	DocReport         = "REPORT"
	DocUnknown        = "UNKNOWN"
)

// Classification is stored in the pipeline context under
// MetaDocumentClassification.
type Classification struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}

// typeSignals are lexical markers per document type. Classification is
// purely structural/lexical and works with zero network access.
var typeSignals = map[string][]string{
	DocInvoice: {
		"rechnung", "invoice", "facture", "fattura", "mwst", "mehrwertsteuer",
		"vat", "zahlbar bis", "betrag", "total chf", "amount due", "zahlungsfrist",
	},
	DocContract: {
		"vertrag", "contract", "contrat", "vertragspartei", "parties",
		"vereinbaren", "klausel", "clause", "kündigungsfrist", "artikel",
	},
	DocLetter: {
		"sehr geehrte", "sehr geehrter", "dear mr", "dear ms", "dear sir",
		"madame, monsieur", "freundliche grüsse", "freundlichen grüssen",
		"meilleures salutations", "sincerely", "yours faithfully",
	},
	DocMedical: {
		"patient", "patientin", "diagnose", "diagnosis", "befund", "anamnese",
		"spital", "hospital", "arzt", "medikament", "therapie", "dosierung",
	},
	DocLegal: {
		"gericht", "court", "urteil", "klage", "verfügung", "tribunal",
		"rechtsanwalt", "attorney", "beschluss", "aktenzeichen",
	},
	DocForm: {
		"formular", "bitte ausfüllen", "please complete", "antragsformular",
		"antrag", "application form", "zutreffendes ankreuzen",
	},
	DocReport: {
		"bericht", "report", "zusammenfassung", "executive summary",
		"analyse", "findings", "auswertung", "ergebnisse",
	},
	DocCorrespondence: {
		"betreff", "subject:", "ihr schreiben", "your letter", "bezugnehmend",
		"in reply to", "unser zeichen",
	},
}

// languageStopwords drive lexical language detection.
var languageStopwords = map[string][]string{
	"de": {" der ", " die ", " das ", " und ", " nicht ", " mit ", " für ", " ist "},
	"fr": {" le ", " la ", " les ", " et ", " dans ", " pour ", " est ", " avec "},
	"it": {" il ", " la ", " che ", " per ", " con ", " sono ", " della ", " questo "},
	"en": {" the ", " and ", " for ", " with ", " this ", " that ", " from ", " have "},
}

// signalWeight is the confidence contributed by each matched type signal.
const signalWeight = 0.18

// ClassifyPass determines document type, language, and the frontmatter
// boundary, and writes them into the pipeline context for downstream
// passes. It runs before detection and touches no entities.
type ClassifyPass struct {
	base
	cfg    config.ClassificationConfig
	logger *logger.Logger
}

// NewClassifyPass builds the classification pass.
func NewClassifyPass(cfg config.ClassificationConfig, log *logger.Logger) *ClassifyPass {
	return &ClassifyPass{
		base:   base{name: "document-classification", order: OrderClassify, enabled: true},
		cfg:    cfg,
		logger: log,
	}
}

// Execute implements pipeline.Pass. Contract: writes MetaDocumentType,
// MetaDocumentClassification, MetaDocumentLanguage, and MetaFrontmatterEnd.
func (p *ClassifyPass) Execute(ctx context.Context, text string, entities []entity.Entity, pc *pipeline.Context) ([]entity.Entity, error) {
	cls := Classify(text)

	if pc.Language == "" {
		pc.Language = cls.Language
	}
	pc.Metadata[pipeline.MetaDocumentType] = cls.Type
	pc.Metadata[pipeline.MetaDocumentClassification] = cls
	pc.Metadata[pipeline.MetaDocumentLanguage] = cls.Language

	if end := frontmatterEnd(text); end > 0 {
		pc.Metadata[pipeline.MetaFrontmatterEnd] = end
	}

	p.logger.Debug("Document classified",
		zap.String("document_id", pc.DocumentID),
		zap.String("type", cls.Type),
		zap.Float64("confidence", cls.Confidence),
		zap.String("language", cls.Language),
	)
	return entities, nil
}

// Classify scores the text against the lexical signal table and detects the
// dominant language.
func Classify(text string) Classification {
	lower := strings.ToLower(text)

	bestType := DocUnknown
	bestScore := 0.0
	for docType, signals := range typeSignals {
		score := 0.0
		for _, s := range signals {
			if strings.Contains(lower, s) {
				score += signalWeight
			}
		}
		if score > bestScore || (score == bestScore && score > 0 && docType < bestType) {
			bestType = docType
			bestScore = score
		}
	}
	if bestScore == 0 {
		bestType = DocUnknown
	}
	if bestScore > 0.95 {
		bestScore = 0.95
	}

	return Classification{
		Type:       bestType,
		Confidence: bestScore,
		Language:   DetectLanguage(lower),
	}
}

// DetectLanguage counts stopword hits per language over lowercased text.
// Ties and empty input fall back to German, the primary document language.
func DetectLanguage(lower string) string {
	best := "de"
	bestHits := 0
	for _, lang := range []string{"de", "fr", "it", "en"} {
		hits := 0
		for _, w := range languageStopwords[lang] {
			hits += strings.Count(lower, w)
		}
		if hits > bestHits {
			best = lang
			bestHits = hits
		}
	}
	return best
}

// frontmatterEnd returns the offset just past a leading YAML frontmatter
// block, or 0 when the document has none.
func frontmatterEnd(text string) int {
	if !strings.HasPrefix(text, "---\n") && !strings.HasPrefix(text, "---\r\n") {
		return 0
	}
	for _, closer := range []string{"\n---\n", "\n---\r\n", "\n...\n"} {
		if idx := strings.Index(text[3:], closer); idx >= 0 {
			return 3 + idx + len(closer)
		}
	}
	return 0
}
