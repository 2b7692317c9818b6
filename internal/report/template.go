package report

// ReportTemplate is the HTML template for the credit-cycle report. Every
// .page div prints on its own sheet.
const ReportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
  :root {
    --bg: #ffffff;
    --text: #1a1a2e;
    --muted: #6b7280;
    --border: #e5e7eb;
    --accent: #2563eb;
    --green: #16a34a;
    --red: #dc2626;
    --section-bg: #f8fafc;
  }
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    color: var(--text);
    background: var(--bg);
    line-height: 1.6;
    max-width: 1000px;
    margin: 0 auto;
    padding: 20px;
  }
  h1, h2, h3 { font-weight: 600; }
  h1 { font-size: 1.6rem; margin-bottom: 4px; }
  h2 { font-size: 1.2rem; margin: 8px 0 12px; padding-bottom: 6px; border-bottom: 2px solid var(--accent); }
  p { margin: 6px 0; }
  .muted { color: var(--muted); font-size: 0.85rem; }

  .header {
    display: flex;
    justify-content: space-between;
    align-items: flex-end;
    border-bottom: 3px solid var(--accent);
    padding-bottom: 12px;
    margin-bottom: 16px;
  }
  .header-right { text-align: right; }

  .stat-bar {
    display: grid;
    grid-template-columns: repeat(4, 1fr);
    gap: 8px;
    background: var(--section-bg);
    padding: 12px;
    border-radius: 8px;
    margin: 12px 0;
  }
  .stat-item .label { font-size: 0.75rem; color: var(--muted); text-transform: uppercase; }
  .stat-item .value { font-size: 1rem; font-weight: 600; }

  table { width: 100%; border-collapse: collapse; margin: 8px 0; font-size: 0.85rem; }
  th, td { padding: 6px 10px; text-align: left; border-bottom: 1px solid var(--border); }
  th { background: var(--section-bg); font-weight: 600; }
  td.num { text-align: right; font-variant-numeric: tabular-nums; }
  tr.all td { font-weight: 600; border-top: 2px solid var(--border); }
  .swatch { display: inline-block; width: 10px; height: 10px; border-radius: 50%; margin-right: 6px; }
  .stale { color: var(--red); }

  .chart-container { margin: 12px 0; overflow-x: auto; }
  .chart-container svg { max-width: 100%; height: auto; }

  .section-summary {
    background: var(--section-bg);
    padding: 12px;
    border-radius: 6px;
    margin: 8px 0;
    font-size: 0.95rem;
  }

  .page { page-break-after: always; break-after: page; padding-bottom: 16px; }
  .page:last-of-type { page-break-after: auto; break-after: auto; }

  .footer {
    margin-top: 30px;
    padding-top: 12px;
    border-top: 2px solid var(--border);
    font-size: 0.8rem;
    color: var(--muted);
    text-align: center;
  }

  @media print {
    body { max-width: 100%; padding: 0; }
  }
</style>
</head>
<body>

<!-- ═══════ OVERVIEW ═══════ -->
<div class="page" id="overview">
  <div class="header">
    <div>
      <h1>{{.Title}}</h1>
      <p class="muted">{{.Subtitle}}</p>
    </div>
    <div class="header-right">
      <p class="muted">{{.GeneratedAt}}</p>
      {{if .Author}}<p class="muted">{{.Author}}</p>{{end}}
    </div>
  </div>

  <div class="stat-bar">
    <div class="stat-item"><div class="label">Rows</div><div class="value">{{.Rows}}</div></div>
    <div class="stat-item"><div class="label">Quarters</div><div class="value">{{.Quarters}}</div></div>
    <div class="stat-item"><div class="label">From</div><div class="value">{{.From}}</div></div>
    <div class="stat-item"><div class="label">To</div><div class="value">{{.To}}</div></div>
  </div>

  <div class="section-summary">{{.Summary}}</div>

  <h2>Indicators</h2>
  <table id="indicators">
    <thead><tr><th>Column</th><th>FRED ID</th><th>Title</th><th>Frequency</th></tr></thead>
    <tbody>
    {{range .Indicators}}
    <tr><td>{{.Name}}</td><td>{{.ID}}</td><td>{{.Title}}</td><td>{{.Frequency}}</td></tr>
    {{end}}
    </tbody>
  </table>

  <h2>Periods</h2>
  <table id="periods">
    <thead><tr><th>Period</th><th>Range</th></tr></thead>
    <tbody>
    {{range .Periods}}
    <tr><td><span class="swatch" style="background: {{.Color}}"></span>{{.Label}}</td><td>{{.Range}}</td></tr>
    {{end}}
    </tbody>
  </table>
</div>

<!-- ═══════ CURRENT RELATIONSHIP ═══════ -->
<div class="page" id="current">
  <h2>Current Relationship</h2>
  <div class="chart-container">{{.CurrentChart}}</div>
</div>

<!-- ═══════ PREDICTIVE RELATIONSHIP ═══════ -->
{{range .Predictive}}
<div class="page predictive">
  <h2>Predictive Relationship: {{.Months}} Months Ahead</h2>
  <div class="chart-container">{{.Chart}}</div>
</div>
{{end}}

<!-- ═══════ TIME SERIES ═══════ -->
<div class="page" id="timeseries">
  <h2>Spread and Delinquency Over Time</h2>
  <div class="chart-container">{{.TimeSeriesChart}}</div>
</div>

<!-- ═══════ REGIMES ═══════ -->
<div class="page" id="regimes">
  <h2>Statistics by Regime</h2>
  <table>
    <thead>
      <tr>
        <th>Period</th><th>Quarters</th><th>Mean Spread</th><th>Mean Delinquency</th><th>Std Delinquency</th>
        <th>Corr (current)</th>
        {{range .HorizonHeaders}}<th>Corr {{.}}m</th><th>R² {{.}}m</th>{{end}}
      </tr>
    </thead>
    <tbody>
    {{range .Regimes}}
    <tr{{if .All}} class="all"{{end}}>
      <td>{{if .Color}}<span class="swatch" style="background: {{.Color}}"></span>{{end}}{{.Period}}</td>
      <td class="num">{{.Quarters}}</td>
      <td class="num">{{.MeanSpread}}</td>
      <td class="num">{{.MeanDelinquency}}</td>
      <td class="num">{{.StdDelinquency}}</td>
      <td class="num">{{.Correlation}}</td>
      {{range .Horizons}}<td class="num">{{.Correlation}}</td><td class="num">{{.RSquared}}</td>{{end}}
    </tr>
    {{end}}
    </tbody>
  </table>
</div>

<!-- ═══════ SERIES ═══════ -->
<div class="page" id="series">
  <h2>Series</h2>
  <table>
    <thead><tr><th>Column</th><th>FRED ID</th><th>Source</th><th>Observations</th><th>Valid</th><th>First</th><th>Last</th><th>Fetched</th></tr></thead>
    <tbody>
    {{range .Series}}
    <tr>
      <td>{{.Name}}</td><td>{{.SeriesID}}</td><td{{if .Stored}} class="stale"{{end}}>{{.Source}}</td>
      <td class="num">{{.Observations}}</td><td class="num">{{.Valid}}</td>
      <td>{{.First}}</td><td>{{.Last}}</td><td>{{.FetchedAt}}</td>
    </tr>
    {{end}}
    </tbody>
  </table>

  <div class="footer">
    <p>{{.Source}}</p>
    <p>Generated on {{.GeneratedAt}}. Statistics are descriptive and not a forecast.</p>
  </div>
</div>

</body>
</html>`
