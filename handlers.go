package main

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Gimmick12-DYY/ADRD-KG/models"
)

const timeLayout = "2006-01-02 15:04:05"

// Modalities offered as filter choices. The catalog stores free text, so
// the filter list is fixed rather than derived.
var filterModalities = []string{
	"MRI", "fMRI", "PET", "DTI", "ASL",
	"SNP Genotyping", "WGS", "WES", "RNA", "Epigenomics",
	"Proteomics", "Metabolomics", "EHR", "Clinical Cognitive Tests",
}

func setupRoutes(r *gin.Engine) {
	api := r.Group("/api")

	api.GET("/health", healthHandler)

	api.GET("/datasets", listDatasetsHandler)
	api.GET("/datasets/search", searchDatasetsHandler)
	api.GET("/datasets/export", exportDatasetsHandler)
	api.GET("/datasets/recent", recentDatasetsHandler)
	api.GET("/datasets/:id", getDatasetHandler)
	api.GET("/datasets/:id/publications", datasetPublicationsHandler)

	api.GET("/publications", listPublicationsHandler)
	api.GET("/publications/search", searchPublicationsHandler)
	api.GET("/publications/export", exportPublicationsHandler)
	api.GET("/publications/recent", recentPublicationsHandler)

	api.GET("/stats", statsHandler)
	api.GET("/filters", filtersHandler)
	api.GET("/analytics/overview", analyticsOverviewHandler)

	api.POST("/auth/login", loginHandler)
	api.POST("/auth/logout", logoutHandler)
	api.GET("/auth/check", checkAuthHandler)

	mgmt := api.Group("/management")
	mgmt.Use(reviewerContext())
	mgmt.GET("/pending", listPendingHandler)
	mgmt.GET("/pending/:id", pendingDetailHandler)
	mgmt.POST("/pending/:id/approve", approveUploadHandler)
	mgmt.POST("/pending/:id/reject", rejectUploadHandler)

	api.POST("/upload", submitUploadHandler)
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "ADRD Knowledge Graph API is running",
	})
}

func pageParams(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "10"))
	if perPage < 1 {
		perPage = 10
	}
	return page, perPage
}

// listDatasetsHandler returns datasets with optional filtering and
// pagination.
func listDatasetsHandler(c *gin.Context) {
	q := db.Model(&models.Dataset{})
	if v := c.Query("disease_type"); v != "" {
		q = q.Where("disease_type LIKE ?", "%"+v+"%")
	}
	if v := c.Query("modality"); v != "" {
		q = q.Where("modalities LIKE ?", "%"+v+"%")
	}
	if v := c.Query("search"); v != "" {
		q = q.Where("name LIKE ?", "%"+v+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	page, perPage := pageParams(c)
	var datasets []models.Dataset
	if err := q.Order("created_at desc").Offset((page - 1) * perPage).Limit(perPage).Find(&datasets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if datasets == nil {
		datasets = []models.Dataset{}
	}
	pages := int(total) / perPage
	if int(total)%perPage != 0 || pages == 0 {
		pages++
	}
	c.JSON(http.StatusOK, gin.H{
		"datasets":     datasets,
		"total":        total,
		"pages":        pages,
		"current_page": page,
	})
}

func getDatasetHandler(c *gin.Context) {
	var ds models.Dataset
	if err := db.First(&ds, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found"})
		return
	}
	c.JSON(http.StatusOK, ds)
}

// searchDatasetsHandler is the advanced, unpaginated dataset search.
func searchDatasetsHandler(c *gin.Context) {
	q := db.Model(&models.Dataset{})
	if v := c.Query("q"); v != "" {
		q = q.Where("name LIKE ? OR description LIKE ?", "%"+v+"%", "%"+v+"%")
	}
	if v := c.Query("disease_type"); v != "" {
		q = q.Where("disease_type LIKE ?", "%"+v+"%")
	}
	if v := c.Query("modality"); v != "" {
		q = q.Where("modalities LIKE ?", "%"+v+"%")
	}
	if v := c.Query("min_sample_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q = q.Where("sample_size >= ?", n)
		}
	}
	if v := c.Query("max_sample_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q = q.Where("sample_size <= ?", n)
		}
	}
	if v := c.Query("data_accessibility"); v != "" {
		q = q.Where("data_accessibility LIKE ?", "%"+v+"%")
	}
	if v := c.Query("wgs_available"); v != "" {
		q = q.Where("wgs_available LIKE ?", "%"+v+"%")
	}

	var datasets []models.Dataset
	if err := q.Find(&datasets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if datasets == nil {
		datasets = []models.Dataset{}
	}
	c.JSON(http.StatusOK, gin.H{"datasets": datasets, "total": len(datasets)})
}

func exportDatasetsHandler(c *gin.Context) {
	var datasets []models.Dataset
	if err := db.Order("created_at desc").Find(&datasets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="adrd_datasets.csv"`)
	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{
		"ID", "Name", "Description", "Disease Type", "Sample Size",
		"Data Accessibility", "WGS Available", "Imaging Types", "Modalities", "Created At",
	})
	for _, d := range datasets {
		_ = w.Write([]string{
			strconv.FormatUint(uint64(d.ID), 10), d.Name, d.Description, d.DiseaseType,
			strconv.Itoa(d.SampleSize), d.DataAccessibility, d.WGSAvailable,
			d.ImagingTypes, d.Modalities, d.CreatedAt.Format(timeLayout),
		})
	}
	w.Flush()
}

func recentDatasetsHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))
	if limit < 1 {
		limit = 5
	}
	var datasets []models.Dataset
	if err := db.Order("created_at desc").Limit(limit).Find(&datasets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if datasets == nil {
		datasets = []models.Dataset{}
	}
	c.JSON(http.StatusOK, gin.H{"datasets": datasets})
}

func datasetPublicationsHandler(c *gin.Context) {
	var ds models.Dataset
	if err := db.First(&ds, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found"})
		return
	}
	var pubs []models.Publication
	if err := db.Where("dataset_name = ?", ds.Name).Find(&pubs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if pubs == nil {
		pubs = []models.Publication{}
	}
	c.JSON(http.StatusOK, gin.H{
		"dataset": gin.H{
			"id":          ds.ID,
			"name":        ds.Name,
			"description": ds.Description,
		},
		"publications": pubs,
		"total":        len(pubs),
	})
}

func listPublicationsHandler(c *gin.Context) {
	q := db.Model(&models.Publication{})
	if v := c.Query("dataset_name"); v != "" {
		q = q.Where("dataset_name LIKE ?", "%"+v+"%")
	}
	if v := c.Query("title_search"); v != "" {
		q = q.Where("title LIKE ?", "%"+v+"%")
	}
	if v := c.Query("year"); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			q = q.Where("year = ?", y)
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	page, perPage := pageParams(c)
	var pubs []models.Publication
	if err := q.Order("year desc, created_at desc").Offset((page - 1) * perPage).Limit(perPage).Find(&pubs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if pubs == nil {
		pubs = []models.Publication{}
	}
	pages := int(total) / perPage
	if int(total)%perPage != 0 || pages == 0 {
		pages++
	}
	c.JSON(http.StatusOK, gin.H{
		"publications": pubs,
		"total":        total,
		"pages":        pages,
		"current_page": page,
	})
}

func searchPublicationsHandler(c *gin.Context) {
	q := db.Model(&models.Publication{})
	if v := c.Query("q"); v != "" {
		q = q.Where("title LIKE ? OR authors LIKE ?", "%"+v+"%", "%"+v+"%")
	}
	if v := c.Query("dataset_name"); v != "" {
		q = q.Where("dataset_name LIKE ?", "%"+v+"%")
	}
	if v := c.Query("journal"); v != "" {
		q = q.Where("journal LIKE ?", "%"+v+"%")
	}
	if v := c.Query("min_year"); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			q = q.Where("year >= ?", y)
		}
	}
	if v := c.Query("max_year"); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			q = q.Where("year <= ?", y)
		}
	}
	if v := c.Query("author"); v != "" {
		q = q.Where("authors LIKE ?", "%"+v+"%")
	}

	var pubs []models.Publication
	if err := q.Find(&pubs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if pubs == nil {
		pubs = []models.Publication{}
	}
	c.JSON(http.StatusOK, gin.H{"publications": pubs, "total": len(pubs)})
}

func exportPublicationsHandler(c *gin.Context) {
	var pubs []models.Publication
	if err := db.Order("year desc, created_at desc").Find(&pubs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="adrd_publications.csv"`)
	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{
		"ID", "Title", "Authors", "Journal", "Year", "PMID", "DOI", "Dataset Name", "Created At",
	})
	for _, p := range pubs {
		_ = w.Write([]string{
			strconv.FormatUint(uint64(p.ID), 10), p.Title, p.Authors, p.Journal,
			strconv.Itoa(p.Year), p.PMID, p.DOI, p.DatasetName, p.CreatedAt.Format(timeLayout),
		})
	}
	w.Flush()
}

func recentPublicationsHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))
	if limit < 1 {
		limit = 5
	}
	var pubs []models.Publication
	if err := db.Order("created_at desc").Limit(limit).Find(&pubs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if pubs == nil {
		pubs = []models.Publication{}
	}
	c.JSON(http.StatusOK, gin.H{"publications": pubs})
}

type groupCount struct {
	Key   string
	Count int64
}

func groupedCounts(model any, column string) ([]groupCount, error) {
	var rows []groupCount
	err := db.Model(model).
		Select(fmt.Sprintf("%s as key, count(*) as count", column)).
		Where(fmt.Sprintf("%s <> ''", column)).
		Group(column).
		Scan(&rows).Error
	return rows, err
}

func statsHandler(c *gin.Context) {
	var totalDatasets, totalPublications int64
	db.Model(&models.Dataset{}).Count(&totalDatasets)
	db.Model(&models.Publication{}).Count(&totalPublications)

	diseases, err := groupedCounts(&models.Dataset{}, "disease_type")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	distribution := make([]gin.H, 0, len(diseases))
	for _, d := range diseases {
		distribution = append(distribution, gin.H{"disease_type": d.Key, "count": d.Count})
	}
	c.JSON(http.StatusOK, gin.H{
		"total_datasets":       totalDatasets,
		"total_publications":   totalPublications,
		"disease_distribution": distribution,
	})
}

func filtersHandler(c *gin.Context) {
	var diseaseTypes []string
	if err := db.Model(&models.Dataset{}).Where("disease_type <> ''").Distinct().Pluck("disease_type", &diseaseTypes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if diseaseTypes == nil {
		diseaseTypes = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"disease_types": diseaseTypes,
		"modalities":    filterModalities,
	})
}

func analyticsOverviewHandler(c *gin.Context) {
	var totalDatasets, totalPublications int64
	db.Model(&models.Dataset{}).Count(&totalDatasets)
	db.Model(&models.Publication{}).Count(&totalPublications)

	var sampleSizes []int
	db.Model(&models.Dataset{}).Where("sample_size > 0").Pluck("sample_size", &sampleSizes)
	minSize, maxSize, sum := 0, 0, 0
	for i, s := range sampleSizes {
		if i == 0 || s < minSize {
			minSize = s
		}
		if s > maxSize {
			maxSize = s
		}
		sum += s
	}
	avgSize := 0.0
	if len(sampleSizes) > 0 {
		avgSize = float64(sum) / float64(len(sampleSizes))
	}

	diseases, err := groupedCounts(&models.Dataset{}, "disease_type")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	diseaseDist := make([]gin.H, 0, len(diseases))
	for _, d := range diseases {
		diseaseDist = append(diseaseDist, gin.H{"disease_type": d.Key, "count": d.Count})
	}

	var yearRows []struct {
		Year  int
		Count int64
	}
	db.Model(&models.Publication{}).Select("year, count(*) as count").
		Where("year > 0").Group("year").Order("year desc").Scan(&yearRows)
	years := make([]gin.H, 0, len(yearRows))
	for _, y := range yearRows {
		years = append(years, gin.H{"year": y.Year, "count": y.Count})
	}

	access, err := groupedCounts(&models.Dataset{}, "data_accessibility")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	accessDist := make([]gin.H, 0, len(access))
	for _, a := range access {
		accessDist = append(accessDist, gin.H{"accessibility": a.Key, "count": a.Count})
	}

	wgs, err := groupedCounts(&models.Dataset{}, "wgs_available")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	wgsDist := make([]gin.H, 0, len(wgs))
	for _, w := range wgs {
		wgsDist = append(wgsDist, gin.H{"availability": w.Key, "count": w.Count})
	}

	c.JSON(http.StatusOK, gin.H{
		"overview": gin.H{
			"total_datasets":     totalDatasets,
			"total_publications": totalPublications,
			"avg_sample_size":    avgSize,
			"min_sample_size":    minSize,
			"max_sample_size":    maxSize,
		},
		"disease_distribution": diseaseDist,
		"publication_years":    years,
		"data_accessibility":   accessDist,
		"wgs_availability":     wgsDist,
	})
}
