package api

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tellurium-labs/assay.report/internal/align"
	"github.com/tellurium-labs/assay.report/internal/compare"
	"github.com/tellurium-labs/assay.report/internal/grid"
	"github.com/tellurium-labs/assay.report/internal/httputil"
	"github.com/tellurium-labs/assay.report/internal/report"
	"github.com/tellurium-labs/assay.report/internal/session"
	"github.com/tellurium-labs/assay.report/internal/tabular"
)

const previewPairs = 10

// datasetInfo is the upload response summary for one side.
type datasetInfo struct {
	Name    string   `json:"name"`
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
}

func describeDataset(name string, ds *tabular.Dataset) datasetInfo {
	return datasetInfo{Name: name, Rows: ds.Len(), Columns: ds.Columns()}
}

// uploadDatasets accepts a multipart form with "original" and "candidate"
// CSV files, validates both parse, and returns a session token.
func (s *Server) uploadDatasets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	maxBytes := int64(64 << 20)
	if s.cfg.MaxUploadBytes != nil {
		maxBytes = *s.cfg.MaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("failed to parse upload: %v", err))
		return
	}

	origName, origData, err := readUploadFile(r, "original")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	candName, candData, err := readUploadFile(r, "candidate")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	orig, err := tabular.FromCSVBytes("original", origData)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("original: %v", err))
		return
	}
	cand, err := tabular.FromCSVBytes("candidate", candData)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("candidate: %v", err))
		return
	}

	token, err := s.store.Put(session.Upload{
		OriginalName:  origName,
		CandidateName: candName,
		OriginalCSV:   origData,
		CandidateCSV:  candData,
	})
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"token":     token,
		"original":  describeDataset(origName, orig),
		"candidate": describeDataset(candName, cand),
	})
}

func readUploadFile(r *http.Request, field string) (name string, data []byte, err error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("missing %q file field", field)
	}
	defer f.Close()
	data, err = io.ReadAll(f)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read %q upload: %w", field, err)
	}
	return hdr.Filename, data, nil
}

func (s *Server) listColumns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	orig, cand, sess, err := s.sessionDatasets(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"token":     sess.Token,
		"original":  describeDataset(sess.Upload.OriginalName, orig),
		"candidate": describeDataset(sess.Upload.CandidateName, cand),
	})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		httputil.MethodNotAllowed(w)
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		httputil.BadRequest(w, "missing token")
		return
	}
	if err := s.store.Delete(token); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "deleted"})
}

func (s *Server) alignDatasets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	res, opts, err := s.runAlign(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	preview := res.Pairs
	if len(preview) > previewPairs {
		preview = preview[:previewPairs]
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"n_pairs":   res.Len(),
		"rounding":  opts.Rounding,
		"preview":   preview,
		"residuals": compare.Describe(res.Residuals()),
	})
}

func (s *Server) summariseAlignment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	res, opts, err := s.runAlign(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"n_pairs":   res.Len(),
		"rounding":  opts.Rounding,
		"original":  compare.Describe(res.OrigValues()),
		"candidate": compare.Describe(res.CandValues()),
		"residuals": compare.Describe(res.Residuals()),
	})
}

func (s *Server) listMethods(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{"methods": compare.Methods()})
}

func (s *Server) compareGrid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	g, spec, echo, err := s.runGrid(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"grid":   g,
		"bounds": spec.Bounds,
		"params": echo,
	})
}

func (s *Server) exportPairs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	res, _, err := s.runAlign(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteCSV(w, "pairs.csv", func(cw *csv.Writer) error {
		return report.WritePairs(cw, res)
	})
}

func (s *Server) exportGrid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	g, spec, _, err := s.runGrid(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteCSV(w, "grid.csv", func(cw *csv.Writer) error {
		return report.WriteGridCells(cw, g, spec)
	})
}

func (s *Server) renderHeatmap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	g, _, echo, err := s.runGrid(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = report.RenderHeatmap(w, g, report.HeatmapOptions{
		Title:    fmt.Sprintf("Grid comparison (%s)", echo.Method),
		Subtitle: fmt.Sprintf("nx=%d ny=%d", g.Nx, g.Ny),
		Layer:    r.URL.Query().Get("layer"),
	})
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
}

func (s *Server) renderScatter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	res, _, err := s.runAlign(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := report.WriteScatterPNG(w, res); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
}

func (s *Server) renderResiduals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	res, _, err := s.runAlign(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := report.WriteResidualHistogramPNG(w, res); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.cfg)
}

// sessionDatasets resolves the token query parameter into parsed datasets.
func (s *Server) sessionDatasets(r *http.Request) (orig, cand *tabular.Dataset, sess *session.Session, err error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		return nil, nil, nil, session.ErrNotFound
	}
	sess, err = s.store.Get(token)
	if err != nil {
		return nil, nil, nil, err
	}
	orig, cand, err = sess.Datasets()
	if err != nil {
		return nil, nil, nil, err
	}
	return orig, cand, sess, nil
}

// alignOptions assembles alignment options from query parameters with
// configured defaults. Column defaults mirror the common survey layout:
// X, Y plus a shared element column.
func (s *Server) alignOptions(q url.Values) (align.Options, error) {
	value := queryDefault(q, "value", "")
	opts := align.Options{
		OrigX:     queryDefault(q, "orig_x", queryDefault(q, "x", "X")),
		OrigY:     queryDefault(q, "orig_y", queryDefault(q, "y", "Y")),
		OrigValue: queryDefault(q, "orig_value", value),
		CandX:     queryDefault(q, "cand_x", queryDefault(q, "x", "X")),
		CandY:     queryDefault(q, "cand_y", queryDefault(q, "y", "Y")),
		CandValue: queryDefault(q, "cand_value", value),
		Rounding:  align.DefaultRounding,
	}
	if s.cfg.DefaultRounding != nil {
		opts.Rounding = *s.cfg.DefaultRounding
	}
	if v := q.Get("rounding"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, &paramError{Name: "rounding", Value: v}
		}
		opts.Rounding = n
	}
	if s.cfg.IDColumn != nil {
		opts.IDColumn = *s.cfg.IDColumn
	}
	opts.IDColumn = queryDefault(q, "id_column", opts.IDColumn)
	if s.cfg.SpuriousColumn != nil {
		opts.SpuriousColumn = *s.cfg.SpuriousColumn
	}
	opts.SpuriousColumn = queryDefault(q, "spurious_column", opts.SpuriousColumn)

	if opts.OrigValue == "" || opts.CandValue == "" {
		return opts, &paramError{Name: "value"}
	}
	return opts, nil
}

func (s *Server) runAlign(r *http.Request) (*align.Result, align.Options, error) {
	orig, cand, _, err := s.sessionDatasets(r)
	if err != nil {
		return nil, align.Options{}, err
	}
	opts, err := s.alignOptions(r.URL.Query())
	if err != nil {
		return nil, opts, err
	}
	res, err := align.Align(orig, cand, opts)
	if err != nil {
		return nil, opts, err
	}
	return res, opts, nil
}

// gridEcho is the parameter echo returned with every grid response so the
// caller can tell which knobs actually applied.
type gridEcho struct {
	Method   string         `json:"method"`
	CellSize float64        `json:"cell_size,omitempty"`
	Params   compare.Params `json:"params"`
}

func (s *Server) runGrid(r *http.Request) (compare.Grid, grid.Spec, gridEcho, error) {
	var echo gridEcho

	orig, cand, _, err := s.sessionDatasets(r)
	if err != nil {
		return compare.Grid{}, grid.Spec{}, echo, err
	}

	q := r.URL.Query()
	opts, err := s.alignOptions(q)
	if err != nil {
		return compare.Grid{}, grid.Spec{}, echo, err
	}
	origCols := compare.ColumnSpec{X: opts.OrigX, Y: opts.OrigY, Value: opts.OrigValue}
	candCols := compare.ColumnSpec{X: opts.CandX, Y: opts.CandY, Value: opts.CandValue}

	if err := orig.RequireColumns(origCols.X, origCols.Y, origCols.Value); err != nil {
		return compare.Grid{}, grid.Spec{}, echo, err
	}
	if err := cand.RequireColumns(candCols.X, candCols.Y, candCols.Value); err != nil {
		return compare.Grid{}, grid.Spec{}, echo, err
	}

	spec, cellSize, err := s.gridSpec(q, orig, cand, origCols, candCols)
	if err != nil {
		return compare.Grid{}, grid.Spec{}, echo, err
	}

	method := "max"
	if s.cfg.DefaultMethod != nil {
		method = *s.cfg.DefaultMethod
	}
	method = queryDefault(q, "method", method)

	params, err := s.compareParams(q)
	if err != nil {
		return compare.Grid{}, grid.Spec{}, echo, err
	}

	echo = gridEcho{Method: method, CellSize: cellSize, Params: params}
	g, err := compare.Run(method, cand, orig, candCols, origCols, spec, params)
	if err != nil {
		return compare.Grid{}, grid.Spec{}, echo, err
	}
	return g, spec, echo, nil
}

// gridSpec derives the shared grid from either an explicit cell_size or
// explicit nx/ny, over the union bounds of both datasets.
func (s *Server) gridSpec(q url.Values, orig, cand *tabular.Dataset, origCols, candCols compare.ColumnSpec) (grid.Spec, float64, error) {
	bounds := grid.BoundsOf(orig.Coerce(origCols.X), orig.Coerce(origCols.Y)).
		Union(grid.BoundsOf(cand.Coerce(candCols.X), cand.Coerce(candCols.Y)))
	if bounds.IsZero() {
		return grid.Spec{}, 0, &grid.ResolutionError{Nx: 0, Ny: 0}
	}

	if v := q.Get("cell_size"); v != "" {
		cellSize, err := strconv.ParseFloat(v, 64)
		if err != nil || cellSize <= 0 {
			return grid.Spec{}, 0, &paramError{Name: "cell_size", Value: v}
		}
		spec, err := grid.SpecFromCellSize(bounds, cellSize)
		if err != nil {
			return grid.Spec{}, 0, err
		}
		if err := s.checkGridBudget(spec); err != nil {
			return grid.Spec{}, 0, err
		}
		return spec, cellSize, nil
	}

	nx, err := queryInt(q, "nx", 50)
	if err != nil {
		return grid.Spec{}, 0, err
	}
	ny, err := queryInt(q, "ny", 50)
	if err != nil {
		return grid.Spec{}, 0, err
	}
	spec := grid.Spec{Nx: nx, Ny: ny, Bounds: bounds}
	if err := spec.Validate(); err != nil {
		return grid.Spec{}, 0, err
	}
	if err := s.checkGridBudget(spec); err != nil {
		return grid.Spec{}, 0, err
	}
	return spec, 0, nil
}

func (s *Server) checkGridBudget(spec grid.Spec) error {
	if s.cfg.MaxGridCells == nil {
		return nil
	}
	if spec.Nx*spec.Ny > *s.cfg.MaxGridCells {
		return &grid.ResolutionError{Nx: spec.Nx, Ny: spec.Ny}
	}
	return nil
}

func (s *Server) compareParams(q url.Values) (compare.Params, error) {
	p := s.cfg.CompareParams()
	if v := q.Get("q"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return p, &paramError{Name: "q", Value: v}
		}
		p.Q = f
	}
	if v := q.Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, &paramError{Name: "threshold", Value: v}
		}
		p.Threshold = f
	}
	p.BinsRule = queryDefault(q, "bins_rule", p.BinsRule)
	var err error
	if p.MaxBins, err = queryInt(q, "max_bins", p.MaxBins); err != nil {
		return p, err
	}
	if v := q.Get("min_expected"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, &paramError{Name: "min_expected", Value: v}
		}
		p.MinExpected = f
	}
	return p, nil
}

func queryDefault(q url.Values, key, fallback string) string {
	if v := q.Get(key); v != "" {
		return v
	}
	return fallback
}

func queryInt(q url.Values, key string, fallback int) (int, error) {
	v := q.Get(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, &paramError{Name: key, Value: v}
	}
	return n, nil
}
