package upload_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/azure/azurite"

	"github.com/mitesh006/Code-duel-backend/internal/upload"
)

var container = "failed-jobs"

func TestAzure(t *testing.T) {
	ctx := context.Background()

	azuriteContainer, err := azurite.Run(
		ctx,
		"mcr.microsoft.com/azure-storage/azurite:latest",
		azurite.WithInMemoryPersistence(256),
	)
	require.NoError(t, err, "failed to make azurite container")
	defer func() {
		require.NoError(t, testcontainers.TerminateContainer(azuriteContainer))
	}()

	cred, err := azblob.NewSharedKeyCredential(azurite.AccountName, azurite.AccountKey)
	require.NoError(t, err, "failed to get creds")

	serviceURL, err := azuriteContainer.BlobServiceURL(ctx)
	require.NoError(t, err, "failed to get serviceURL")
	serviceURL = fmt.Sprintf("%s/%s", serviceURL, azurite.AccountName)

	azclient, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	require.NoError(t, err, "failed to make azure blob client")

	uploader, err := upload.NewAzureUploader(
		azurite.AccountName,
		azurite.AccountKey,
		serviceURL,
		container,
	)
	require.NoError(t, err, "failed to construct uploader")

	require.NoError(t, uploader.EnsureContainer(ctx), "failed to create container")
	require.NoError(t, uploader.EnsureContainer(ctx), "existing container should be accepted")

	t.Run("NotExists", func(t *testing.T) {
		exists, err := uploader.Exists(ctx, "abc")
		require.NoError(t, err, "failed to check if blob exists")

		assert.False(t, exists, "blob should not exist")
	})

	t.Run("Upload", func(t *testing.T) {
		key := uuid.NewString() + ".json"
		expected := `{"id":"abc"}`
		err := uploader.Upload(ctx, strings.NewReader(expected), int64(len(expected)), key)
		require.NoError(t, err, "failed to upload blob")

		buffer := make([]byte, len(expected))
		_, err = azclient.DownloadBuffer(ctx, container, key, buffer, nil)
		require.NoError(t, err, "failed to download blob to buffer")
		assert.Equal(t, expected, string(buffer), "content of blob should match")

		props, err := azclient.ServiceClient().
			NewContainerClient(container).
			NewBlobClient(key).
			GetProperties(ctx, nil)
		require.NoError(t, err)
		require.NotNil(t, props.ContentType)
		assert.Equal(t, "application/json", *props.ContentType)

		exists, err := uploader.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, exists, "uploaded blob should exist")
	})

	t.Run("JSONIsWrittenOnce", func(t *testing.T) {
		key := uuid.NewString() + ".json"

		uploaded, err := upload.JSON(ctx, uploader, key, map[string]int{"attempt": 3})
		require.NoError(t, err)
		assert.True(t, uploaded)

		uploaded, err = upload.JSON(ctx, uploader, key, map[string]int{"attempt": 4})
		require.NoError(t, err)
		assert.False(t, uploaded, "second archive of the same key should be skipped")
	})
}
