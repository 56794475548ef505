package httptransport_test

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/ajitpratap0/lumen/pkg/client"
	"github.com/ajitpratap0/lumen/pkg/compression"
	"github.com/ajitpratap0/lumen/pkg/config"
	"github.com/ajitpratap0/lumen/pkg/errors"
	"github.com/ajitpratap0/lumen/pkg/server"
	"github.com/ajitpratap0/lumen/pkg/source"
	"github.com/ajitpratap0/lumen/pkg/testutil"
	"github.com/ajitpratap0/lumen/pkg/transport/httptransport"
	"github.com/ajitpratap0/lumen/pkg/wire"
)

type DeploymentSuite struct {
	testutil.IntegrationTestSuite
	server *server.Server
	http   *httptest.Server
}

func TestDeploymentSuite(t *testing.T) {
	testutil.IntegrationTest(t)
	suite.Run(t, new(DeploymentSuite))
}

func (s *DeploymentSuite) SetupSuite() {
	s.IntegrationTestSuite.SetupSuite()

	cfg := config.NewConfig("integration")
	cfg.Transport.Compression = string(compression.Zstd)
	srv, err := server.New(cfg, server.WithLogger(zap.NewNop()))
	s.Require().NoError(err)
	s.server = srv
	s.http = httptest.NewServer(httptransport.NewServer(srv).Router())

	loopback, err := srv.NewClient()
	s.Require().NoError(err)
	remote, err := httptransport.Dial(s.http.URL, nil, wire.WithCompression(compression.LZ4))
	s.Require().NoError(err)

	s.AddClient("local", srv.NewLocalClient())
	s.AddClient("loopback", loopback)
	s.AddClient("http", remote)
}

func (s *DeploymentSuite) TearDownSuite() {
	s.http.Close()
	_ = s.server.Close()
	s.IntegrationTestSuite.TearDownSuite()
}

func (s *DeploymentSuite) TestEverySourceKind() {
	records := s.CreateTempFile("animals.json", []byte(testutil.AnimalsRecords))
	s.NotEmpty(records)

	s.EachClient(func(name string, c *client.Client) {
		for _, src := range []source.Source{
			source.CSV{Text: testutil.AnimalsCSV},
			testutil.AnimalsArrow(s.T(), memory.DefaultAllocator),
			source.Records{Data: []byte(testutil.AnimalsRecords)},
		} {
			tbl, err := c.Table(s.Context(), src)
			s.Require().NoError(err, "%s %s", name, src.Kind())
			s.Equal([]string{"n_legs", "animals"}, tbl.Columns())
			s.Equal(len(testutil.AnimalLegs), tbl.Size())
		}

		tbl, err := c.Table(s.Context(), testutil.AnimalsFrame())
		s.Require().NoError(err)
		s.Equal([]string{"n_legs", "animals", "index"}, tbl.Columns())
	})
}

func (s *DeploymentSuite) TestErrorsAreIdentical() {
	var texts []string
	s.EachClient(func(name string, c *client.Client) {
		_, err := c.Table(s.Context(), testutil.NamedArrays(s.T(), nil, []int64{1, 2}, []string{"x"}))
		s.Require().Error(err)
		s.True(errors.IsType(err, errors.ErrorTypeSchema))
		texts = append(texts, err.Error())
	})
	s.Require().Len(texts, 3)
	s.Equal(texts[0], texts[1])
	s.Equal(texts[0], texts[2])
}

func (s *DeploymentSuite) TestNamedTablesAreShared() {
	_, err := s.server.Table(s.Context(), source.CSV{Text: "a\n1\n"}, "shared")
	s.Require().NoError(err)

	s.EachClient(func(name string, c *client.Client) {
		tbl, err := c.OpenTable(s.Context(), "shared")
		s.Require().NoError(err)
		s.Equal([]string{"a"}, tbl.Columns())

		_, err = c.Table(s.Context(), source.CSV{Text: "b\n2\n"}, client.WithName("shared"))
		s.Require().Error(err)
		s.Equal(`name_in_use: table "shared" already exists`, err.Error())
	})
}

func (s *DeploymentSuite) TestConstructionThroughput() {
	var b strings.Builder
	b.WriteString("id,name,value\n")
	const rows = 20000
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "%d,row_%d,%.2f\n", i, i, float64(i)*1.23)
	}
	text := b.String()

	s.EachClient(func(name string, c *client.Client) {
		testutil.NewPerformanceTest(s.T(), "csv via "+name).
			WithThroughputTarget(1000).
			Run(func() (int64, time.Duration) {
				start := time.Now()
				tbl, err := c.Table(s.Context(), source.CSV{Text: text})
				s.Require().NoError(err)
				return int64(tbl.Size()), time.Since(start)
			})
	})
}
