package shopify

import (
	"context"
	"fmt"
	"strconv"
)

const queryVariantPricing = `
query ProductVariant($id: ID!) {
  productVariant(id: $id) {
    compareAtPrice
    price
  }
}`

const mutationVariantsBulkUpdate = `
mutation ProductVariantsUpdate($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkUpdate(productId: $productId, variants: $variants) {
    productVariants {
      compareAtPrice
      price
    }
    userErrors {
      field
      message
    }
  }
}`

const mutationCollectionAdd = `
mutation collectionAddProductsV2($id: ID!, $productIds: [ID!]!) {
  collectionAddProductsV2(id: $id, productIds: $productIds) {
    job {
      done
      id
    }
    userErrors {
      field
      message
    }
  }
}`

const mutationCollectionRemove = `
mutation collectionRemoveProducts($id: ID!, $productIds: [ID!]!) {
  collectionRemoveProducts(id: $id, productIds: $productIds) {
    job {
      done
      id
    }
    userErrors {
      field
      message
    }
  }
}`

const mutationTagsAdd = `
mutation addTags($id: ID!, $tags: [String!]!) {
  tagsAdd(id: $id, tags: $tags) {
    node {
      id
    }
    userErrors {
      message
    }
  }
}`

const mutationTagsRemove = `
mutation removeTags($id: ID!, $tags: [String!]!) {
  tagsRemove(id: $id, tags: $tags) {
    node {
      id
    }
    userErrors {
      message
    }
  }
}`

const queryVariantMetafield = `
query ProductVariantMetafield($namespace: String!, $key: String!, $ownerId: ID!) {
  productVariant(id: $ownerId) {
    metafield(namespace: $namespace, key: $key) {
      value
    }
  }
}`

type mutationResult struct {
	UserErrors []userErrorDetail `json:"userErrors"`
}

// VariantPricing reads the variant's current price and compareAtPrice.
func (c *Client) VariantPricing(ctx context.Context, variantID string) (VariantPricing, error) {
	var out struct {
		ProductVariant *struct {
			CompareAtPrice *string `json:"compareAtPrice"`
			Price          string  `json:"price"`
		} `json:"productVariant"`
	}
	if err := c.execute(ctx, queryVariantPricing, map[string]interface{}{"id": variantID}, &out); err != nil {
		return VariantPricing{}, err
	}
	if out.ProductVariant == nil {
		return VariantPricing{}, fmt.Errorf("variant not found: %s", variantID)
	}

	price, err := strconv.ParseFloat(out.ProductVariant.Price, 64)
	if err != nil {
		return VariantPricing{}, fmt.Errorf("unparseable variant price %q: %w", out.ProductVariant.Price, err)
	}
	pricing := VariantPricing{Price: price}
	if out.ProductVariant.CompareAtPrice != nil {
		compareAt, err := strconv.ParseFloat(*out.ProductVariant.CompareAtPrice, 64)
		if err != nil {
			return VariantPricing{}, fmt.Errorf("unparseable compareAtPrice %q: %w", *out.ProductVariant.CompareAtPrice, err)
		}
		pricing.CompareAtPrice = &compareAt
	}
	return pricing, nil
}

// UpdateVariantPrice sets a variant's price, optionally preserving the
// compareAtPrice, via the bulk variant update mutation.
func (c *Client) UpdateVariantPrice(ctx context.Context, productID, variantID string, price float64, compareAtPrice *float64) error {
	variant := map[string]interface{}{
		"id":    variantID,
		"price": formatPrice(price),
	}
	if compareAtPrice != nil {
		variant["compareAtPrice"] = formatPrice(*compareAtPrice)
	}

	var out struct {
		ProductVariantsBulkUpdate mutationResult `json:"productVariantsBulkUpdate"`
	}
	err := c.execute(ctx, mutationVariantsBulkUpdate, map[string]interface{}{
		"productId": productID,
		"variants":  []interface{}{variant},
	}, &out)
	if err != nil {
		return err
	}
	return userErrorsIfAny("productVariantsBulkUpdate", out.ProductVariantsBulkUpdate.UserErrors)
}

// AddToCollection adds a product to a collection.
func (c *Client) AddToCollection(ctx context.Context, collectionID, productID string) error {
	var out struct {
		CollectionAddProductsV2 mutationResult `json:"collectionAddProductsV2"`
	}
	err := c.execute(ctx, mutationCollectionAdd, map[string]interface{}{
		"id":         collectionID,
		"productIds": []string{productID},
	}, &out)
	if err != nil {
		return err
	}
	return userErrorsIfAny("collectionAddProductsV2", out.CollectionAddProductsV2.UserErrors)
}

// RemoveFromCollection removes a product from a collection.
func (c *Client) RemoveFromCollection(ctx context.Context, collectionID, productID string) error {
	var out struct {
		CollectionRemoveProducts mutationResult `json:"collectionRemoveProducts"`
	}
	err := c.execute(ctx, mutationCollectionRemove, map[string]interface{}{
		"id":         collectionID,
		"productIds": []string{productID},
	}, &out)
	if err != nil {
		return err
	}
	return userErrorsIfAny("collectionRemoveProducts", out.CollectionRemoveProducts.UserErrors)
}

// AddTags adds tags to a product.
func (c *Client) AddTags(ctx context.Context, ownerID string, tags []string) error {
	var out struct {
		TagsAdd mutationResult `json:"tagsAdd"`
	}
	err := c.execute(ctx, mutationTagsAdd, map[string]interface{}{
		"id":   ownerID,
		"tags": tags,
	}, &out)
	if err != nil {
		return err
	}
	return userErrorsIfAny("tagsAdd", out.TagsAdd.UserErrors)
}

// RemoveTags removes tags from a product.
func (c *Client) RemoveTags(ctx context.Context, ownerID string, tags []string) error {
	var out struct {
		TagsRemove mutationResult `json:"tagsRemove"`
	}
	err := c.execute(ctx, mutationTagsRemove, map[string]interface{}{
		"id":   ownerID,
		"tags": tags,
	}, &out)
	if err != nil {
		return err
	}
	return userErrorsIfAny("tagsRemove", out.TagsRemove.UserErrors)
}

// VariantMetafield reads a named metafield off a variant. A missing
// metafield is an empty string, not an error.
func (c *Client) VariantMetafield(ctx context.Context, variantID, namespace, key string) (string, error) {
	var out struct {
		ProductVariant *struct {
			Metafield *struct {
				Value string `json:"value"`
			} `json:"metafield"`
		} `json:"productVariant"`
	}
	err := c.execute(ctx, queryVariantMetafield, map[string]interface{}{
		"namespace": namespace,
		"key":       key,
		"ownerId":   variantID,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.ProductVariant == nil || out.ProductVariant.Metafield == nil {
		return "", nil
	}
	return out.ProductVariant.Metafield.Value, nil
}

// SetVariantMetafield writes a named metafield through the bulk variant
// update mutation.
func (c *Client) SetVariantMetafield(ctx context.Context, productID, variantID, namespace, key, value string) error {
	var out struct {
		ProductVariantsBulkUpdate mutationResult `json:"productVariantsBulkUpdate"`
	}
	err := c.execute(ctx, mutationVariantsBulkUpdate, map[string]interface{}{
		"productId": productID,
		"variants": []interface{}{
			map[string]interface{}{
				"id": variantID,
				"metafields": []interface{}{
					map[string]interface{}{
						"namespace": namespace,
						"key":       key,
						"type":      "single_line_text_field",
						"value":     value,
					},
				},
			},
		},
	}, &out)
	if err != nil {
		return err
	}
	return userErrorsIfAny("productVariantsBulkUpdate", out.ProductVariantsBulkUpdate.UserErrors)
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
