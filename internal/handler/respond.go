package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/extraweb/internal/domain/paging"
)

// reply writes a successful envelope. data is encoded with encoding/json and
// may be nil; meta is written only for paginated listings.
func reply(w http.ResponseWriter, r *http.Request, status int, message string, data any, meta *paging.Meta) {
	var raw []byte
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			zctx.From(r.Context()).Error("Encode response", zap.Error(err))
			writeEnvelope(w, http.StatusInternalServerError, failure{message: msgInternal})
			return
		}
		raw = b
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("message")
	e.Str(message)
	if raw != nil {
		e.FieldStart("data")
		e.Raw(raw)
	}
	if meta != nil {
		e.FieldStart("meta")
		encodeMeta(e, *meta)
	}
	e.ObjEnd()

	write(w, status, e.Bytes())
}

func encodeMeta(e *jx.Encoder, m paging.Meta) {
	e.ObjStart()
	e.FieldStart("page")
	e.Int(m.Page)
	e.FieldStart("limit")
	e.Int(m.Limit)
	e.FieldStart("total")
	e.Int64(m.Total)
	e.FieldStart("totalPages")
	e.Int64(m.TotalPages)
	e.ObjEnd()
}

// failure is an error envelope.
type failure struct {
	message string
	fields  []fieldMessage
	stack   string
}

type fieldMessage struct {
	path    string
	message string
}

func writeEnvelope(w http.ResponseWriter, status int, f failure) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	fields := f.fields
	if len(fields) == 0 {
		fields = []fieldMessage{{message: f.message}}
	}

	e.ObjStart()
	e.FieldStart("success")
	e.Bool(false)
	e.FieldStart("message")
	e.Str(f.message)
	e.FieldStart("errorMessages")
	e.ArrStart()
	for _, fm := range fields {
		e.ObjStart()
		e.FieldStart("path")
		e.Str(fm.path)
		e.FieldStart("message")
		e.Str(fm.message)
		e.ObjEnd()
	}
	e.ArrEnd()
	if f.stack != "" {
		e.FieldStart("stack")
		e.Str(f.stack)
	}
	e.ObjEnd()

	write(w, status, e.Bytes())
}

func write(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
