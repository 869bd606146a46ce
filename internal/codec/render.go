package codec

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// DeliveryInfo is the delivery metadata part of an info document
type DeliveryInfo struct {
	ConsumerTag string `json:"consumer_tag"`
	DeliveryTag uint64 `json:"delivery_tag"`
	Redelivered bool   `json:"redelivered"`
	Exchange    string `json:"exchange"`
	RoutingKey  string `json:"routing_key"`
}

// PropertiesInfo is the message properties part of an info document
type PropertiesInfo struct {
	ContentType   string         `json:"content_type"`
	Headers       map[string]any `json:"headers"`
	ReplyTo       string         `json:"reply_to,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Priority      uint8          `json:"priority,omitempty"`
}

// Document is the JSON rendering of a delivery in info mode
type Document struct {
	Deliver DeliveryInfo   `json:"deliver"`
	Props   PropertiesInfo `json:"props"`
	Data    any            `json:"data"`
}

// NewDocument converts a delivery into its JSON form
func NewDocument(d amqp.Delivery) (*Document, error) {
	headers, err := FromTable(d.Headers)
	if err != nil {
		return nil, err
	}

	data, err := DecodeBody(d.ContentType, d.Body)
	if err != nil {
		return nil, err
	}

	return &Document{
		Deliver: DeliveryInfo{
			ConsumerTag: d.ConsumerTag,
			DeliveryTag: d.DeliveryTag,
			Redelivered: d.Redelivered,
			Exchange:    d.Exchange,
			RoutingKey:  d.RoutingKey,
		},
		Props: PropertiesInfo{
			ContentType:   d.ContentType,
			Headers:       headers.JSONObject(),
			ReplyTo:       d.ReplyTo,
			CorrelationID: d.CorrelationId,
			Priority:      d.Priority,
		},
		Data: data,
	}, nil
}

// Render turns a delivery into output bytes. With info set the result is a
// pretty printed Document. Otherwise JSON bodies are pretty printed and any
// other body is passed through untouched.
func Render(d amqp.Delivery, info bool) ([]byte, error) {
	if info {
		doc, err := NewDocument(d)
		if err != nil {
			return nil, err
		}
		return marshalPretty(doc)
	}

	if d.ContentType != ContentTypeJSON {
		return d.Body, nil
	}

	body, err := DecodeBody(d.ContentType, d.Body)
	if err != nil {
		return nil, err
	}
	return marshalPretty(body)
}
