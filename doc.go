// Package lumen is an embeddable columnar table engine. A server turns
// heterogeneous sources (delimited text, Arrow arrays and streams, Parquet,
// Avro, labeled frames and JSON records) into immutable, named tables held
// as Arrow records, and serves them to clients in the same process or over
// the wire.
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/ajitpratap0/lumen/pkg/server"
//	    "github.com/ajitpratap0/lumen/pkg/source"
//	)
//
//	s, _ := server.New(nil)
//	defer s.Close()
//
//	c := s.NewLocalClient()
//	t, err := c.Table(context.Background(), source.CSV{Text: "n_legs,animals\n2,Flamingo\n"})
//	// t.Columns() == [n_legs animals], t.Size() == 1
//
// A client built with server.NewClient, or httptransport.Dial for a remote
// server, exposes the same operations. Errors are classified (schema,
// parse, type_mismatch, name_in_use, not_found, ...) and their text does
// not depend on where the server runs.
//
// # Key Packages
//
//	pkg/server         - Table registry, naming and construction
//	pkg/client         - Client handles over a local or remote backend
//	pkg/source         - Source descriptions accepted by Table
//	pkg/ingest         - Format adapters and the dispatcher
//	pkg/schema         - Unified schema and type inference
//	pkg/columnar       - Immutable Arrow-backed column store
//	pkg/wire           - Request envelopes and value encoding
//	pkg/transport      - HTTP transport for the wire protocol
//	pkg/errors         - Classified errors that survive transport
//	pkg/config         - Configuration, environment overrides and validation
//	pkg/logger         - Structured logging
//	pkg/metrics        - Prometheus collectors
//	pkg/observability  - Tracing
//
// # Command Line
//
//	lumen load animals.csv            # build a table in process
//	lumen serve --addr :8080          # serve tables over HTTP
//	lumen load --remote http://localhost:8080 data.parquet
//	lumen tables --remote http://localhost:8080
package lumen
