package provider

// ModelType names a kind of data a Fetcher returns. Each ModelType maps to
// one concrete Go type in FetchResult.Data.
type ModelType string

const (
	// ModelSeriesObservations returns series.Series. Requires ParamSymbol
	// (the FRED series id) and accepts ParamStartDate, ParamEndDate and ParamName.
	ModelSeriesObservations ModelType = "SeriesObservations"

	// ModelSeriesInfo returns models.SeriesInfo for ParamSymbol.
	ModelSeriesInfo ModelType = "SeriesInfo"

	// ModelSeriesSearch returns []models.SearchResult for ParamQuery.
	ModelSeriesSearch ModelType = "SeriesSearch"
)

// AllModels returns every defined model type.
func AllModels() []ModelType {
	return []ModelType{
		ModelSeriesObservations,
		ModelSeriesInfo,
		ModelSeriesSearch,
	}
}
