// Package generation defines the boundary between the application core and
// external AI/LLM services: prompt construction, the generator interfaces,
// and the pipeline that recovers a structured marketing bundle from the
// model's unstructured reply.
package generation
