package control

import (
	"fmt"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"route-animator/internal/routesource"
)

// CommandMetrics counts received commands by source and op.
type CommandMetrics interface {
	CommandReceived(source, op string)
}

type seekRequest struct {
	Percent *float64 `json:"percent" binding:"required"`
}

type viewRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// speedRequest accepts "slow"/"medium"/"fast" or the numbers 0.5, 1, 2.
type speedRequest struct {
	Speed any `json:"speed" binding:"required"`
}

type zoomRequest struct {
	Zoom *float64 `json:"zoom" binding:"required"`
}

type server struct {
	d Dispatcher
	m CommandMetrics
}

// NewRouter builds the HTTP control surface. Every handler forwards one
// Command to d. Commands may carry ?routeId= to guard against acting on
// a route that has since been replaced.
func NewRouter(d Dispatcher, m CommandMetrics) *gin.Engine {
	s := &server{d: d, m: m}
	r := gin.Default()

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"status":  "ok",
		})
	})

	api := r.Group("/api")
	{
		api.GET("/frame", s.simple(OpFrame))
		api.POST("/play", s.simple(OpPlay))
		api.POST("/pause", s.simple(OpPause))
		api.POST("/resume", s.simple(OpResume))
		api.POST("/stop", s.simple(OpStop))
		api.POST("/seek", s.seek)
		api.PUT("/view", s.view)
		api.PUT("/speed", s.speed)
		api.PUT("/zoom", s.zoom)
		api.POST("/route", s.route)
	}
	return r
}

func (s *server) simple(op Op) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.dispatch(c, Command{Op: op})
	}
}

func (s *server) seek(c *gin.Context) {
	var req seekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s.dispatch(c, Command{Op: OpSeek, Percent: req.Percent})
}

func (s *server) view(c *gin.Context) {
	var req viewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s.dispatch(c, Command{Op: OpView, Mode: req.Mode})
}

func (s *server) speed(c *gin.Context) {
	var req speedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s.dispatch(c, Command{Op: OpSpeed, Speed: fmt.Sprint(req.Speed)})
}

func (s *server) zoom(c *gin.Context) {
	var req zoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s.dispatch(c, Command{Op: OpZoom, Zoom: req.Zoom})
}

// route loads a new route from the request body. The Content-Type picks
// the decoder: GeoJSON, GPX, or YAML/JSON legs (the default).
func (s *server) route(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return
	}
	legs, err := routesource.Parse(bodyFormat(c.GetHeader("Content-Type")), body)
	if err != nil {
		c.JSON(StatusFor(err), gin.H{"error": err.Error()})
		return
	}
	s.dispatch(c, Command{Op: OpLoad, Legs: legs})
}

func bodyFormat(contentType string) routesource.Format {
	mt, _, _ := mime.ParseMediaType(contentType)
	switch mt {
	case "application/geo+json", "application/vnd.geo+json":
		return routesource.GeoJSON
	case "application/gpx+xml", "application/xml", "text/xml":
		return routesource.GPX
	default:
		return routesource.YAML
	}
}

func (s *server) dispatch(c *gin.Context, cmd Command) {
	cmd.RouteID = c.Query("routeId")
	if s.m != nil {
		s.m.CommandReceived("http", string(cmd.Op))
	}
	res, err := s.d.Do(c.Request.Context(), cmd)
	if err != nil {
		c.JSON(StatusFor(err), gin.H{
			"error":   err.Error(),
			"phase":   res.Phase,
			"routeId": res.RouteID,
		})
		return
	}
	c.JSON(http.StatusOK, res)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%v: %v", ErrBadCommand, err)})
}
