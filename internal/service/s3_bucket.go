package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/Maxito7/agenda/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// prefijoFallidos agrupa los eventos archivados para reconciliación manual
const prefijoFallidos = "sync-fallidos"

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Service struct {
	BucketName string
	Client     objectPutter
}

// NewS3Service inicializa el servicio con las credenciales por defecto de AWS
func NewS3Service(ctx context.Context, bucketName, region string) (*S3Service, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("bucket name is not set")
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %v", err)
	}

	return NewS3ServiceWithClient(bucketName, s3.NewFromConfig(cfg)), nil
}

// NewS3ServiceWithClient permite inyectar el cliente (tests, endpoints alternativos)
func NewS3ServiceWithClient(bucketName string, client objectPutter) *S3Service {
	return &S3Service{BucketName: bucketName, Client: client}
}

// ClaveFallo devuelve la clave del objeto para un evento fallido
func ClaveFallo(ev domain.EventoSync) string {
	return fmt.Sprintf("%s/%s/%s.json", prefijoFallidos, ev.ActualizadoEn.UTC().Format("2006/01/02"), ev.EventID)
}

// NotificarFallo archiva el evento como JSON en el bucket
func (s *S3Service) NotificarFallo(ctx context.Context, ev domain.EventoSync) error {
	body, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %v", ev.EventID, err)
	}

	key := ClaveFallo(ev)
	_, err = s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to S3: %w", key, err)
	}

	return nil
}
