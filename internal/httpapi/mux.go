package httpapi

import (
	"database/sql"
	"net/http"
)

func NewMux(db *sql.DB, broker BrokerStatus) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db, broker)
	return mux
}
