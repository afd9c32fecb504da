package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the users service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>users-api - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document describing the user endpoints. All /user routes
// require a Keycloak bearer token; the record is keyed by the token subject.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "users-api", "version": "v1.0.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } },
    "schemas": {
      "Error": { "type": "object", "properties": { "error": {"type":"string"}, "field": {"type":"string"}, "code": {"type":"string"} } },
      "UserAttributes": { "type": "object", "properties": {
        "first_name": {"type":"string","maxLength":35}, "last_name": {"type":"string","maxLength":35},
        "era_commons_id": {"type":"string"}, "nih_ned_id": {"type":"string"}, "commercial_use_reason": {"type":"string"},
        "email": {"type":"string","format":"email"}, "public_email": {"type":"string","format":"email"},
        "newsletter_email": {"type":"string","format":"email"}, "external_individual_email": {"type":"string","format":"email"},
        "external_individual_fullname": {"type":"string"}, "linkedin": {"type":"string","format":"uri"},
        "roles": {"type":"array","items":{"type":"string","maxLength":100}}, "affiliation": {"type":"string"},
        "portal_usages": {"type":"array","items":{"type":"string"}}, "research_domains": {"type":"array","items":{"type":"string"}},
        "research_area_description": {"type":"string"}, "profile_image_key": {"type":"string"},
        "locale": {"type":"string","enum":["en","fr"]},
        "newsletter_subscription_status": {"type":"string","enum":["subscribed","unsubscribed","failed"]},
        "consent_date": {"type":"string","format":"date-time"},
        "accepted_terms": {"type":"boolean"}, "understand_disclaimer": {"type":"boolean"}, "completed_registration": {"type":"boolean"},
        "config": {"type":"object"}
      } }
    }
  },
  "security": [ { "bearer": [] } ],
  "paths": {
    "/user": {
      "get": { "summary": "Get the caller's user", "responses": { "200": { "description": "user" }, "404": { "description": "not found" } } },
      "post": { "summary": "Create the caller's user", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/UserAttributes"} } } }, "responses": { "201": { "description": "created user" }, "400": { "description": "validation failure" }, "409": { "description": "already exists; a subject whose user was soft-deleted stays blocked and cannot register again" } } },
      "put": { "summary": "Update the caller's user (partial)", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/UserAttributes"} } } }, "responses": { "200": { "description": "updated user" }, "400": { "description": "validation failure" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Delete the caller's user", "description": "With the default soft delete policy the record is hidden but keeps its keycloak_id, so POST /user for the same subject answers 409 afterwards. There is no restore endpoint.", "responses": { "200": { "description": "deleted" }, "404": { "description": "not found" } } }
    },
    "/user/complete-registration": {
      "put": { "summary": "Update the caller's user and mark registration completed", "responses": { "200": { "description": "updated user" } } }
    },
    "/user/profile-image": {
      "post": { "summary": "Allocate a profile image key and return a presigned upload URL", "responses": { "200": { "description": "upload url" } } },
      "get": { "summary": "Presigned download URL of the profile image", "responses": { "200": { "description": "download url" }, "404": { "description": "no image" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "security": [], "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "security": [], "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
