package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "TeamOps Governance API",
        "description": "Master promotion and challenge engine",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Applications", "description": "Master promotion bids and quorum voting"},
        {"name": "Eligibility", "description": "Promotion gate pre-checks"},
        {"name": "Challenges", "description": "Contests against sitting masters"},
        {"name": "Masters", "description": "Role master roster"},
        {"name": "Sweeper", "description": "Deadline resolution"},
        {"name": "Dossiers", "description": "Decision-record exports"}
    ],
    "paths": {
        "/applications": {
            "get": {
                "tags": ["Applications"],
                "summary": "List master applications",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "role", "in": "query", "type": "string"},
                    {"name": "userId", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Applications"],
                "summary": "Submit a master application",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitApplicationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Not eligible", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/applications/{id}": {
            "get": {
                "tags": ["Applications"],
                "summary": "Get application",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/applications/{id}/votes": {
            "get": {
                "tags": ["Applications"],
                "summary": "List ballots",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Applications"],
                "summary": "Cast a ballot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CastVoteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate vote or closed window", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/eligibility/{userId}": {
            "get": {
                "tags": ["Eligibility"],
                "summary": "Check promotion eligibility",
                "parameters": [
                    {"name": "userId", "in": "path", "required": true, "type": "string"},
                    {"name": "role", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/challenges": {
            "get": {
                "tags": ["Challenges"],
                "summary": "List challenges",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "role", "in": "query", "type": "string"},
                    {"name": "challengerId", "in": "query", "type": "string"},
                    {"name": "masterId", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Challenges"],
                "summary": "Initiate a challenge",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateChallengeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflicting challenge", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/challenges/{id}": {
            "get": {
                "tags": ["Challenges"],
                "summary": "Get challenge",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/challenges/{id}/response": {
            "post": {
                "tags": ["Challenges"],
                "summary": "Accept or decline a challenge",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RespondChallengeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the challenged master", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/challenges/{id}/metrics": {
            "post": {
                "tags": ["Challenges"],
                "summary": "Upsert side metrics",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitMetricsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/challenges/{id}/votes": {
            "get": {
                "tags": ["Challenges"],
                "summary": "List ballots of a completed peer-vote challenge",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Ballots sealed until completion", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Challenges"],
                "summary": "Cast a peer-vote ballot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CastChallengeVoteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate vote or closed window", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/challenges/{id}/adjudication": {
            "post": {
                "tags": ["Challenges"],
                "summary": "Record project showdown verdict",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AdjudicateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/challenges/{id}/score": {
            "get": {
                "tags": ["Challenges"],
                "summary": "Live battle score",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/challenges/{id}/progress": {
            "get": {
                "tags": ["Challenges"],
                "summary": "Voting progress",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/masters": {
            "get": {
                "tags": ["Masters"],
                "summary": "List team masters",
                "parameters": [
                    {"name": "role", "in": "query", "type": "string"},
                    {"name": "userId", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/masters/{id}": {
            "get": {
                "tags": ["Masters"],
                "summary": "Get master",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sweeper/run": {
            "post": {
                "tags": ["Sweeper"],
                "summary": "Run a deadline sweep now",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/dossiers": {
            "post": {
                "tags": ["Dossiers"],
                "summary": "Queue a decision-record export",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DossierRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/dossiers/{id}": {
            "get": {
                "tags": ["Dossiers"],
                "summary": "Export job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/dossiers/download/{token}": {
            "get": {
                "tags": ["Dossiers"],
                "summary": "Download a finished export",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        }
    },
    "definitions": {
        "SubmitApplicationRequest": {
            "type": "object",
            "properties": {
                "role_name": {"type": "string"},
                "project_id": {"type": "string"},
                "motivation": {"type": "string"},
                "achievements": {"type": "array", "items": {"type": "string"}},
                "votes_required": {"type": "integer"}
            },
            "required": ["role_name", "motivation"]
        },
        "CastVoteRequest": {
            "type": "object",
            "properties": {
                "in_favor": {"type": "boolean"},
                "comment": {"type": "string"}
            }
        },
        "CreateChallengeRequest": {
            "type": "object",
            "properties": {
                "role_name": {"type": "string"},
                "project_id": {"type": "string"},
                "challenge_type": {"type": "string", "enum": ["PERFORMANCE", "PROJECT", "PEER_VOTE"]},
                "master_share": {"type": "number"},
                "challenger_share": {"type": "number"},
                "adjudication_ref": {"type": "string"}
            },
            "required": ["role_name", "challenge_type"]
        },
        "RespondChallengeRequest": {
            "type": "object",
            "properties": {
                "accept": {"type": "boolean"},
                "note": {"type": "string"}
            }
        },
        "SubmitMetricsRequest": {
            "type": "object",
            "properties": {
                "side": {"type": "string", "enum": ["CHALLENGER", "MASTER"]},
                "tasks_completed": {"type": "integer"},
                "tasks_on_time_percent": {"type": "number"},
                "obvs_validated": {"type": "integer"},
                "feedback_score": {"type": "number"},
                "initiative": {"type": "number"}
            },
            "required": ["side"]
        },
        "CastChallengeVoteRequest": {
            "type": "object",
            "properties": {
                "for_challenger": {"type": "boolean"}
            }
        },
        "AdjudicateRequest": {
            "type": "object",
            "properties": {
                "result": {"type": "string", "enum": ["CHALLENGER_WINS", "MASTER_WINS", "DRAW"]},
                "notes": {"type": "string"}
            },
            "required": ["result"]
        },
        "DossierRequest": {
            "type": "object",
            "properties": {
                "kind": {"type": "string", "enum": ["APPLICATION", "CHALLENGE"]},
                "entity_id": {"type": "string"},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            },
            "required": ["kind", "entity_id", "format"]
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
