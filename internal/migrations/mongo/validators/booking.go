package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"number",
			"resource_id",
			"requester_id",
			"date",
			"start_time",
			"end_time",
			"starts_at",
			"ends_at",
			"party_size",
			"total_cents",
			"currency",
			"status",
			"payment_status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 36,
				"maxLength": 36,
			},

			"number": bson.M{
				"bsonType": "string",
				"pattern":  `^BK-\d{8}-\d{6,}$`,
			},

			"resource_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"requester_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 128,
			},

			"date": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{4}-\d{2}-\d{2}$`,
			},

			"start_time": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{2}:\d{2}$`,
			},

			"end_time": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{2}:\d{2}$`,
			},

			"starts_at": bson.M{
				"bsonType": "date",
			},

			"ends_at": bson.M{
				"bsonType": "date",
			},

			"party_size": bson.M{
				"bsonType": "number",
				"minimum":  1,
				"maximum":  500,
			},

			"total_cents": bson.M{
				"bsonType": "number",
				"minimum":  0,
			},

			"paid_cents": bson.M{
				"bsonType": "number",
				"minimum":  0,
			},

			"currency": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 3,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"confirmed",
					"cancelled",
					"completed",
					"no_show",
				},
			},

			"payment_status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"unpaid",
					"partial",
					"paid",
					"refunded",
				},
			},

			"idempotency_key": bson.M{
				"bsonType":  "string",
				"maxLength": 128,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var LedgerValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"booking_id",
			"resource_id",
			"event",
			"actor",
			"timestamp",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "number",
				"minimum":  1,
			},

			"booking_id": bson.M{
				"bsonType": "string",
			},

			"event": bson.M{
				"bsonType": "string",
				"enum": []string{
					"requested",
					"confirmed",
					"cancelled",
					"completed",
					"no_show",
					"payment_recorded",
					"payment_confirmed",
					"payment_refunded",
				},
			},

			"amount_cents": bson.M{
				"bsonType": "number",
				"minimum":  0,
			},

			"timestamp": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var LockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "owner", "expires_at"},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},
			"owner": bson.M{
				"bsonType": "string",
			},
			"expires_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
