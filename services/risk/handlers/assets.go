// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianRisk/pkg/validation"
	"github.com/AleutianAI/AleutianRisk/services/risk/datatypes"
)

// assetRequest is the write payload for asset registration and update.
type assetRequest struct {
	Name            string                                     `json:"name" binding:"required,min=1,max=128"`
	Kind            string                                     `json:"kind" binding:"required,oneof=postgres sqlite duckdb filestore service"`
	Environment     string                                     `json:"environment" binding:"omitempty,max=64"`
	Criticality     int                                        `json:"criticality" binding:"required,min=1,max=5"`
	DataSensitivity string                                     `json:"data_sensitivity" binding:"omitempty,oneof=public internal confidential restricted"`
	InternetExposed bool                                       `json:"internet_exposed"`
	Products        []datatypes.ProductRef                     `json:"products" binding:"omitempty,dive"`
	Controls        map[string]datatypes.ControlImplementation `json:"controls"`
}

func init() {
	// Product names end up in CVE mirror SQL queries, so they are
	// checked against a strict character whitelist at bind time.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterStructValidation(assetRequestStructLevel, assetRequest{})
	}
}

func assetRequestStructLevel(sl validator.StructLevel) {
	req := sl.Current().Interface().(assetRequest)
	names := make([]string, len(req.Products))
	for i, p := range req.Products {
		names[i] = p.Product
	}
	if err := validation.ValidateProducts(names); err != nil {
		sl.ReportError(req.Products, "products", "Products", "productname", err.Error())
	}
}

func (r *assetRequest) apply(asset *datatypes.Asset) {
	asset.Name = r.Name
	asset.Kind = datatypes.AssetKind(r.Kind)
	asset.Environment = r.Environment
	asset.Criticality = r.Criticality
	asset.DataSensitivity = datatypes.DataSensitivity(r.DataSensitivity)
	if r.DataSensitivity == "" {
		asset.DataSensitivity = datatypes.SensitivityInternal
	}
	asset.InternetExposed = r.InternetExposed
	asset.Products = r.Products
	asset.Controls = r.Controls
}

// CreateAsset registers a new asset. Responds 201 with the stored record.
func CreateAsset(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req assetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		asset := &datatypes.Asset{
			ID:        uuid.NewString(),
			CreatedAt: time.Now().UTC(),
		}
		req.apply(asset)

		if err := d.Store.PutAsset(c.Request.Context(), asset); err != nil {
			respondStoreError(c, d.Logger, err)
			return
		}
		d.Logger.Info("asset registered", "asset_id", asset.ID, "name", asset.Name)
		c.JSON(http.StatusCreated, asset)
	}
}

// ListAssets returns the full inventory sorted by name.
func ListAssets(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		assets, err := d.Store.ListAssets(c.Request.Context())
		if err != nil {
			respondStoreError(c, d.Logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"assets": assets, "count": len(assets)})
	}
}

// GetAsset returns one asset by ID.
func GetAsset(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("assetId")
		if err := validation.ValidateAssetID(id); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		asset, err := d.Store.GetAsset(c.Request.Context(), id)
		if err != nil {
			respondStoreError(c, d.Logger, err)
			return
		}
		c.JSON(http.StatusOK, asset)
	}
}

// UpdateAsset replaces the mutable fields of an asset.
func UpdateAsset(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("assetId")
		if err := validation.ValidateAssetID(id); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var req assetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		asset, err := d.Store.GetAsset(c.Request.Context(), id)
		if err != nil {
			respondStoreError(c, d.Logger, err)
			return
		}
		req.apply(asset)

		if err := d.Store.PutAsset(c.Request.Context(), asset); err != nil {
			respondStoreError(c, d.Logger, err)
			return
		}
		c.JSON(http.StatusOK, asset)
	}
}

// DeleteAsset removes an asset from the inventory. Assessment history
// is retained for audit.
func DeleteAsset(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("assetId")
		if err := validation.ValidateAssetID(id); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := d.Store.DeleteAsset(c.Request.Context(), id); err != nil {
			respondStoreError(c, d.Logger, err)
			return
		}
		d.Logger.Info("asset deleted", "asset_id", id)
		c.Status(http.StatusNoContent)
	}
}
