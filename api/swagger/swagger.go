package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Care Contracts API",
        "description": "Contract period management with overlap conflict enforcement",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Contracts", "description": "Contract period management"},
        {"name": "Categories", "description": "Care categories"}
    ],
    "paths": {
        "/contracts/validate": {
            "post": {
                "tags": ["Contracts"],
                "summary": "Advisory overlap check",
                "description": "Lock-free check used for live form feedback; may be stale under concurrent commits.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CheckContractRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/contracts": {
            "get": {
                "tags": ["Contracts"],
                "summary": "List contract periods",
                "parameters": [
                    {"name": "clientId", "in": "query", "type": "string"},
                    {"name": "categoryId", "in": "query", "type": "string"},
                    {"name": "activeOn", "in": "query", "type": "string", "format": "date"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Contracts"],
                "summary": "Create contract period",
                "description": "Authoritative path; serialises per (client, category) partition and rejects overlapping periods.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateContractRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Overlapping period", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/contracts/{id}": {
            "get": {
                "tags": ["Contracts"],
                "summary": "Get contract period",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Contracts"],
                "summary": "Update contract period",
                "description": "Re-runs overlap validation with the period excluded from its own partition.",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateContractRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Overlapping period", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Contracts"],
                "summary": "Delete contract period",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/clients/{id}/contracts": {
            "get": {
                "tags": ["Contracts"],
                "summary": "List a client's contract periods",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clients/{id}/contracts/export": {
            "get": {
                "tags": ["Contracts"],
                "summary": "Export a client's contract overview",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/categories": {
            "get": {
                "tags": ["Categories"],
                "summary": "List care categories",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ContractPeriod": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "client_id": {"type": "string"},
                "category_id": {"type": "string"},
                "start_date": {"type": "string", "format": "date"},
                "end_date": {"type": "string", "format": "date"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "ContractVerdict": {
            "type": "object",
            "properties": {
                "overlap": {"type": "boolean"},
                "message": {"type": "string"},
                "conflict": {"$ref": "#/definitions/ContractConflict"}
            }
        },
        "ContractConflict": {
            "type": "object",
            "properties": {
                "period_id": {"type": "string"},
                "client_id": {"type": "string"},
                "category_id": {"type": "string"},
                "category_name": {"type": "string"},
                "start_date": {"type": "string", "format": "date"},
                "end_date": {"type": "string", "format": "date"}
            }
        },
        "CheckContractRequest": {
            "type": "object",
            "properties": {
                "client_id": {"type": "string"},
                "category_id": {"type": "string"},
                "start_date": {"type": "string", "format": "date"},
                "end_date": {"type": "string", "format": "date"},
                "exclude_id": {"type": "string"}
            },
            "required": ["client_id", "category_id", "start_date"]
        },
        "CreateContractRequest": {
            "type": "object",
            "properties": {
                "client_id": {"type": "string"},
                "category_id": {"type": "string"},
                "start_date": {"type": "string", "format": "date"},
                "end_date": {"type": "string", "format": "date"}
            },
            "required": ["client_id", "category_id", "start_date"]
        },
        "UpdateContractRequest": {
            "type": "object",
            "properties": {
                "client_id": {"type": "string"},
                "category_id": {"type": "string"},
                "start_date": {"type": "string", "format": "date"},
                "end_date": {"type": "string", "format": "date"}
            },
            "required": ["client_id", "category_id", "start_date"]
        },
        "CareCategory": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "code": {"type": "string"},
                "name": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
