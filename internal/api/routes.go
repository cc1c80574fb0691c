package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"czreality/server/internal/database"
)

func SetupRoutes(router *gin.Engine, db *database.Database, trigger RunTrigger, logger *logrus.Logger) {
	handler := NewHandler(db, trigger, logger)

	api := router.Group("/api")
	{
		api.GET("/listings", handler.GetListings)
		api.GET("/best-deals", handler.GetBestDeals)
		api.GET("/stats", handler.GetFeedStats)
		api.POST("/scrape", handler.RunScrape)
	}
}
