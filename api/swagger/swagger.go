package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Scholchat Scheduled Courses API",
        "description": "Lifecycle management of scheduled course occurrences.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "ScheduledCourses", "description": "Scheduled course lifecycle and rosters"}
    ],
    "paths": {
        "/scheduled-courses": {
            "get": {
                "tags": ["ScheduledCourses"],
                "summary": "List scheduled courses",
                "description": "Exactly one of courseId, classId, professorId, participantId is honoured; without any the caller's own courses are listed.",
                "parameters": [
                    {"name": "courseId", "in": "query", "type": "string"},
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "professorId", "in": "query", "type": "string"},
                    {"name": "participantId", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["all", "PLANNED", "IN_PROGRESS", "COMPLETED", "CANCELLED"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["ScheduledCourses"],
                "summary": "Plan a course occurrence",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleCourseRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scheduled-courses/export": {
            "get": {
                "tags": ["ScheduledCourses"],
                "summary": "Export scheduled courses",
                "produces": ["text/csv", "application/pdf", "text/calendar"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "required": true, "enum": ["csv", "pdf", "ics"]},
                    {"name": "courseId", "in": "query", "type": "string"},
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "professorId", "in": "query", "type": "string"},
                    {"name": "participantId", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Attachment", "schema": {"type": "file"}},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scheduled-courses/{id}": {
            "get": {
                "tags": ["ScheduledCourses"],
                "summary": "Get a scheduled course",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["ScheduledCourses"],
                "summary": "Update a scheduled course",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RescheduleCourseRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Stale version", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scheduled-courses/{id}/start": {
            "post": {
                "tags": ["ScheduledCourses"],
                "summary": "Start a planned course",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid transition", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scheduled-courses/{id}/complete": {
            "post": {
                "tags": ["ScheduledCourses"],
                "summary": "Complete a course in progress",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid transition", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scheduled-courses/{id}/cancel": {
            "post": {
                "tags": ["ScheduledCourses"],
                "summary": "Cancel a planned or running course",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/CancelCourseRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid transition", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scheduled-courses/{id}/participants": {
            "get": {
                "tags": ["ScheduledCourses"],
                "summary": "Resolve the participants of a scheduled course",
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classes/{classId}/roster": {
            "get": {
                "tags": ["ScheduledCourses"],
                "summary": "List the approved roster of a class",
                "parameters": [{"name": "classId", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ScheduleCourseRequest": {
            "type": "object",
            "properties": {
                "courseId": {"type": "string"},
                "professorId": {"type": "string"},
                "classId": {"type": "string"},
                "plannedAt": {"type": "string", "format": "date-time"},
                "location": {"type": "string"},
                "description": {"type": "string"},
                "maxCapacity": {"type": "integer", "minimum": 1},
                "participantIds": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["courseId", "plannedAt", "location"]
        },
        "RescheduleCourseRequest": {
            "type": "object",
            "properties": {
                "classId": {"type": "string"},
                "plannedAt": {"type": "string", "format": "date-time"},
                "actualStartAt": {"type": "string", "format": "date-time"},
                "actualEndAt": {"type": "string", "format": "date-time"},
                "location": {"type": "string"},
                "description": {"type": "string"},
                "maxCapacity": {"type": "integer", "minimum": 1},
                "participantIds": {"type": "array", "items": {"type": "string"}},
                "status": {"type": "string", "enum": ["PLANNED", "IN_PROGRESS", "COMPLETED", "CANCELLED"]}
            }
        },
        "CancelCourseRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string", "maxLength": 500}
            }
        },
        "ScheduledCourse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "courseId": {"type": "string"},
                "professorId": {"type": "string"},
                "classId": {"type": "string"},
                "plannedAt": {"type": "string", "format": "date-time"},
                "actualStartAt": {"type": "string", "format": "date-time"},
                "actualEndAt": {"type": "string", "format": "date-time"},
                "location": {"type": "string"},
                "description": {"type": "string"},
                "maxCapacity": {"type": "integer"},
                "status": {"type": "string"},
                "cancellationReason": {"type": "string"},
                "version": {"type": "integer"},
                "participantIds": {"type": "array", "items": {"type": "string"}}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "field": {"type": "string"},
                "details": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
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
