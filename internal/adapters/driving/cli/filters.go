package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/obra/internal/core/domain"
)

// filterFlags holds the document metadata filters shared by retrieval commands.
type filterFlags struct {
	documentType string
	category     string
	zone         string
	year         int
}

// register adds the filter flags to fs.
func (f *filterFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.documentType, "type", "", "only documents of this type (e.g. tarifa, presupuesto, bc3)")
	fs.StringVar(&f.category, "category", "", "only documents in this trade category")
	fs.StringVar(&f.zone, "zone", "", "only documents for this geographic zone")
	fs.IntVar(&f.year, "year", 0, "only documents with prices for this year")
}

// filters builds the search filters. The year applies only when the flag was set.
func (f *filterFlags) filters(cmd *cobra.Command) domain.SearchFilters {
	out := domain.SearchFilters{
		DocumentType:   f.documentType,
		Category:       f.category,
		GeographicZone: f.zone,
	}
	if cmd.Flags().Changed("year") {
		out.PriceYear = domain.IntPtr(f.year)
	}
	return out
}

// metadata builds document metadata from the same flags, for ingestion.
func (f *filterFlags) metadata(cmd *cobra.Command) domain.DocumentMetadata {
	filters := f.filters(cmd)
	return domain.DocumentMetadata{
		DocumentType:   filters.DocumentType,
		Category:       filters.Category,
		GeographicZone: filters.GeographicZone,
		PriceYear:      filters.PriceYear,
	}
}
