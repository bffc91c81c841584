package billing

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cloudbill/backend/internal/domain/billing"
	"github.com/cloudbill/backend/internal/domain/shared"
	"github.com/cloudbill/backend/internal/domain/shared/valueobject"
	csvimport "github.com/cloudbill/backend/internal/infrastructure/import"
)

// maxImportErrors caps how many row errors are reported per import
const maxImportErrors = 100

// priceImportHeaders are the required CSV columns
var priceImportHeaders = []string{"kind", "rate"}

// PriceImportResult summarizes a bulk price list import
type PriceImportResult struct {
	TotalRows    int                  `json:"total_rows"`
	ImportedRows int                  `json:"imported_rows"`
	ErrorRows    int                  `json:"error_rows"`
	Errors       []csvimport.RowError `json:"errors,omitempty"`
	IsTruncated  bool                 `json:"is_truncated,omitempty"`
}

// PriceImportService loads price list entries from CSV uploads.
// Expected columns: kind, key (optional), rate, currency (optional).
type PriceImportService struct {
	prices *PriceService
	logger *zap.Logger
}

// NewPriceImportService creates a price import service
func NewPriceImportService(prices *PriceService, logger *zap.Logger) *PriceImportService {
	return &PriceImportService{prices: prices, logger: logger}
}

func validationRules() []csvimport.FieldRule {
	return []csvimport.FieldRule{
		csvimport.Field("kind").Required().String().Custom(validateKind).Build(),
		csvimport.Field("key").String().MaxLength(64).Build(),
		csvimport.Field("rate").Required().Decimal().MinValue(decimal.Zero).Build(),
		csvimport.Field("currency").String().Custom(validateCurrency).Build(),
	}
}

func validateKind(value string) error {
	switch billing.ResourceKind(strings.ToLower(value)) {
	case billing.KindInstance, billing.KindVolume, billing.KindFloatingIP,
		billing.KindRouter, billing.KindSnapshot, billing.KindImage:
		return nil
	default:
		return fmt.Errorf("unknown resource kind %q", value)
	}
}

func validateCurrency(value string) error {
	if value == "" {
		return nil
	}
	if len(value) != 3 {
		return fmt.Errorf("currency must be a 3-letter code")
	}
	return nil
}

// ImportCSV parses, validates, and upserts price entries from CSV
// data. Rows failing validation are reported per row; valid rows are
// applied even when other rows fail.
func (s *PriceImportService) ImportCSV(ctx context.Context, r io.Reader) (*PriceImportResult, error) {
	parser, err := csvimport.NewCSVParser(r)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}
	if missing := parser.ValidateHeaders(priceImportHeaders); len(missing) > 0 {
		return nil, shared.NewDomainError("INVALID_INPUT",
			fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")))
	}

	rows, err := parser.ReadAllRows()
	if err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}

	validator := csvimport.NewFieldValidator(validationRules(), maxImportErrors)
	result := &PriceImportResult{TotalRows: len(rows)}
	errs := csvimport.NewErrorCollection(maxImportErrors)

	for _, row := range rows {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !validator.ValidateRow(row) {
			result.ErrorRows++
			continue
		}

		kind := billing.ResourceKind(strings.ToLower(row.Get("kind")))
		key := row.Get("key")
		currency := valueobject.Currency(strings.ToUpper(row.GetOrDefault("currency", string(valueobject.DefaultCurrency))))

		rate, err := valueobject.NewMoneyFromString(row.Get("rate"), currency)
		if err != nil {
			errs.AddValidationError(row.LineNumber, "rate", "INVALID_RATE", err.Error())
			result.ErrorRows++
			continue
		}

		if _, err := s.prices.SetPrice(ctx, kind, key, rate); err != nil {
			errs.AddValidationError(row.LineNumber, "kind", "UPSERT_FAILED", err.Error())
			result.ErrorRows++
			continue
		}
		result.ImportedRows++
	}

	for _, e := range validator.Errors().Errors() {
		errs.Add(e)
	}
	result.Errors = errs.Errors()
	result.IsTruncated = errs.IsTruncated()

	s.logger.Info("price list import finished",
		zap.Int("total", result.TotalRows),
		zap.Int("imported", result.ImportedRows),
		zap.Int("errors", result.ErrorRows),
	)
	return result, nil
}
