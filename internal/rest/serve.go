// Copyright (C) 2021 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"github.com/gin-gonic/gin"

	"github.com/mlnoga/imadjust/internal/levels"
	"github.com/mlnoga/imadjust/internal/ndimg"
	"github.com/mlnoga/imadjust/internal/ops"
	"github.com/mlnoga/imadjust/internal/ops/adjust"
	"github.com/mlnoga/imadjust/internal/stats"
)

type server struct {
	ctx *ops.Context
}

// Creates the HTTP handler for the API. Operators log into the context's log writer
func NewRouter(c *ops.Context) *gin.Engine {
	s:=&server{ctx: c}
	r := gin.New()
	r.Use(gin.LoggerWithWriter(c.Log), gin.Recovery())
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET ("/ping",    getPing)
			v1.POST("/adjust",  s.postAdjust)
			v1.POST("/stats",   s.postStats)
		}
	}
	return r
}

// Listens and serves on the given address, e.g. ":8080"
func Serve(addr string, c *ops.Context) error {
	fmt.Fprintf(c.Log, "Serving API on %s\n", addr)
	return NewRouter(c).Run(addr)
}

func getPing(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "pong",
	})
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m,err:=json.Marshal(args)
	if err!=nil { return err }
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

// Maps error kinds to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ndimg.ErrUnsupportedType), errors.Is(err, ndimg.ErrUnsupportedDevice):
		return http.StatusUnsupportedMediaType
	}
	return http.StatusBadRequest
}

func abortWith(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error() } )
}


type postAdjustArgs struct {
	Image         *ndimg.Image       `json:"image"`
	Adjust        *adjust.OpAdjust   `json:"adjust"`
}

type postAdjustResult struct {
	Image         *ndimg.Image       `json:"image"`
	Limits         levels.Limits     `json:"limits"`
}

func (s *server) postAdjust(c *gin.Context) {
	var args postAdjustArgs
	if err:=c.ShouldBindJSON(&args); err!=nil {
		abortWith(c, err)
		return
	}
	if args.Image==nil {
		abortWith(c, fmt.Errorf("%w: missing image", levels.ErrInvalidArgument))
		return
	}
	if args.Adjust==nil { args.Adjust=adjust.NewOpAdjustDefault() }
	if err:=printArgs(s.ctx.Log, "Adjust arguments: ", "\n", args.Adjust); err!=nil {
		abortWith(c, err)
		return
	}

	res, lim, err:=levels.AdjustWith(args.Image, args.Adjust.Options())
	if err!=nil {
		fmt.Fprintf(s.ctx.Log, "%d: Error: %s\n", args.Image.ID, err.Error())
		abortWith(c, err)
		return
	}
	fmt.Fprintf(s.ctx.Log, "%d: Adjusted %s %v image on %v with %v\n", res.ID, res.DimensionsToString(), res.DType, res.Device, lim)
	c.JSON(http.StatusOK, postAdjustResult{Image: res, Limits: lim})
}


type postStatsArgs struct {
	Image         *ndimg.Image       `json:"image"`
	Stats         *adjust.OpStats    `json:"stats"`
}

type postStatsResult struct {
	Stats         *stats.Stats       `json:"stats"`
	Limits         levels.Limits     `json:"limits"`
}

func (s *server) postStats(c *gin.Context)  {
	var args postStatsArgs
	if err:=c.ShouldBindJSON(&args); err!=nil {
		abortWith(c, err)
		return
	}
	if args.Image==nil {
		abortWith(c, fmt.Errorf("%w: missing image", levels.ErrInvalidArgument))
		return
	}
	if args.Stats==nil { args.Stats=adjust.NewOpStatsDefault() }

	st, lim, err:=args.Stats.Calc(args.Image)
	if err!=nil {
		abortWith(c, err)
		return
	}
	fmt.Fprintf(s.ctx.Log, "%d: %s %v image with %v\n", args.Image.ID, args.Image.DimensionsToString(), args.Image.DType, st)
	c.JSON(http.StatusOK, postStatsResult{Stats: st, Limits: lim})
}
